package provision

import (
	"context"
	"database/sql"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/sqlquote"
	"github.com/rs/zerolog/log"
)

// openAdmin opens the maintenance connection used for CREATE/DROP DATABASE.
// The admin endpoint may briefly refuse connections while the platform
// rotates it, so opening is retried.
func openAdmin(ctx context.Context) (*sql.DB, apperrors.Error) {
	var db *sql.DB
	err := retry.Do(
		func() error {
			var err error
			db, err = sql.Open("pgx", config.Config().AdminDb.Dsn())
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				db.Close()
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, gwerror.ErrProvisioning.MsgErr("unable to reach admin database", err)
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

func roleExists(ctx context.Context, db *sql.DB, role string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM pg_roles WHERE rolname = $1", role).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func databaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM pg_database WHERE datname = $1", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// createRole creates a login role unless it already exists. Role names and
// passwords are generated by the gateway, never taken from request input,
// but are quoted anyway.
func createRole(ctx context.Context, db *sql.DB, role, password string) error {
	exists, err := roleExists(ctx, db, role)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx,
		"CREATE ROLE "+sqlquote.Ident(role)+" LOGIN PASSWORD "+sqlquote.Literal(password))
	return err
}

// createDatabase creates the tenant database unless it already exists.
// CREATE DATABASE cannot run inside a transaction, so existence is checked
// first and the unique claim row protects against races.
func createDatabase(ctx context.Context, db *sql.DB, name, owner string) error {
	exists, err := databaseExists(ctx, db, name)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx,
		"CREATE DATABASE "+sqlquote.Ident(name)+" OWNER "+sqlquote.Ident(owner))
	return err
}

// dropDatabase terminates any open backends and drops the database. Used
// both for rollback of a failed provision and for deprovisioning.
func dropDatabase(ctx context.Context, db *sql.DB, name string) error {
	exists, err := databaseExists(ctx, db, name)
	if err != nil || !exists {
		return err
	}
	_, err = db.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("database", name).
			Msg("unable to terminate backends before drop")
	}
	_, err = db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+sqlquote.Ident(name))
	return err
}

func dropRole(ctx context.Context, db *sql.DB, role string) error {
	exists, err := roleExists(ctx, db, role)
	if err != nil || !exists {
		return err
	}
	_, err = db.ExecContext(ctx, "DROP ROLE IF EXISTS "+sqlquote.Ident(role))
	return err
}
