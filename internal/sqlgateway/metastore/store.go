// Package metastore persists the gateway's administrative metadata: tenant
// database records, provisioning claims, query history and saved queries.
// It is backed by the gateway's own metadata database, never by a tenant
// database.
package metastore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/rs/zerolog/log"
)

type Store struct {
	db *sql.DB
}

// New opens a connection pool to the metadata database and verifies it is
// reachable.
func New(ctx context.Context, dsn string) (*Store, apperrors.Error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, dberror.ErrDatabase.MsgErr("unable to open metadata db", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, dberror.ErrDatabase.MsgErr("unable to reach metadata db", err)
	}
	return &Store{db: db}, nil
}

// NewFromConfig opens the store using the configured metadata database.
func NewFromConfig(ctx context.Context) (*Store, apperrors.Error) {
	return New(ctx, config.Config().MetadataDb.Dsn())
}

func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tenant_databases (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id TEXT NOT NULL UNIQUE,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		database_name TEXT NOT NULL,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		status TEXT NOT NULL,
		info JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS provision_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		app_id TEXT NOT NULL UNIQUE,
		tenant_database_id UUID NOT NULL REFERENCES tenant_databases (id) ON DELETE CASCADE,
		connection_string TEXT NOT NULL,
		schema_generated BOOLEAN NOT NULL DEFAULT false,
		tables_created INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		sql TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms BIGINT NOT NULL,
		row_count BIGINT,
		error_message TEXT,
		executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_query_history_tenant
		ON query_history (tenant_id, executed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS saved_queries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		sql TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_saved_queries_tenant
		ON saved_queries (tenant_id, updated_at DESC)`,
}

// Migrate creates the metadata tables if they do not exist. Statements are
// idempotent, so running on every startup is safe.
func (s *Store) Migrate(ctx context.Context) apperrors.Error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("metadata migration failed")
			return dberror.ErrDatabase.MsgErr("unable to migrate metadata db", err)
		}
	}
	return nil
}
