// Package router resolves tenant IDs to bounded connection pools on the
// tenant's dedicated database. Pools are opened lazily on first use and
// cached for the life of the process; credentials come from the metadata
// store, never from the request.
package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore/dberror"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

type Router struct {
	store *metastore.Store

	mu    sync.Mutex
	pools map[types.TenantId]*TenantPool
}

// TenantPool wraps the bounded *sql.DB for one tenant database.
type TenantPool struct {
	tenantID types.TenantId
	db       *sql.DB
}

func New(store *metastore.Store) *Router {
	return &Router{
		store: store,
		pools: make(map[types.TenantId]*TenantPool),
	}
}

// Pool returns the connection pool for tenantID, opening it on first use.
// Tenants without an active database record are rejected.
func (r *Router) Pool(ctx context.Context, tenantID types.TenantId) (*TenantPool, apperrors.Error) {
	if tenantID.IsNil() {
		return nil, gwerror.ErrTenantNotFound.Msg("missing tenant ID")
	}

	r.mu.Lock()
	if pool, ok := r.pools[tenantID]; ok {
		r.mu.Unlock()
		return pool, nil
	}
	r.mu.Unlock()

	// resolve and open outside the lock; a slow metadata lookup for one
	// tenant must not stall cached-pool lookups for every other tenant
	td, err := r.store.GetTenantDatabase(ctx, tenantID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, gwerror.ErrTenantNotFound
		}
		return nil, gwerror.ErrGateway.MsgErr("unable to resolve tenant database", err)
	}
	if td.Status != types.DatabaseStatusActive {
		return nil, gwerror.ErrTenantNotFound.Msg(
			fmt.Sprintf("tenant database is not active (status: %s)", td.Status))
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		td.Host, td.Port, td.Username, td.Password, td.DatabaseName,
		config.Config().TenantDbSSLMode)
	db, openErr := sql.Open("pgx", dsn)
	if openErr != nil {
		return nil, gwerror.ErrGateway.MsgErr("unable to open tenant pool", openErr)
	}
	db.SetMaxOpenConns(config.Config().TenantPoolMaxConns)
	db.SetMaxIdleConns(config.Config().TenantPoolMaxConns / 2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	r.mu.Lock()
	defer r.mu.Unlock()
	if pool, ok := r.pools[tenantID]; ok {
		// another caller opened the pool first
		db.Close()
		return pool, nil
	}
	pool := &TenantPool{tenantID: tenantID, db: db}
	r.pools[tenantID] = pool
	log.Ctx(ctx).Info().Str("tenant_id", tenantID.String()).
		Str("database", td.DatabaseName).Msg("opened tenant pool")
	return pool, nil
}

// Evict closes and forgets the pool for tenantID. Used on deprovisioning and
// when credentials rotate.
func (r *Router) Evict(tenantID types.TenantId) {
	r.mu.Lock()
	pool, ok := r.pools[tenantID]
	delete(r.pools, tenantID)
	r.mu.Unlock()
	if ok {
		pool.db.Close()
	}
}

// Close shuts down every cached pool.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tenantID, pool := range r.pools {
		pool.db.Close()
		delete(r.pools, tenantID)
	}
}

// DB exposes the underlying pool for callers that manage their own
// transactions.
func (p *TenantPool) DB() *sql.DB {
	return p.db
}

// Conn acquires one connection within the configured acquire timeout and
// applies the per-connection execution guards. A saturated pool surfaces as
// ErrPoolExhausted rather than blocking the request indefinitely.
func (p *TenantPool) Conn(ctx context.Context) (*sql.Conn, apperrors.Error) {
	acquireCtx, cancel := context.WithTimeout(ctx, config.Config().AcquireTimeout())
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, gwerror.ErrPoolExhausted
		}
		return nil, gwerror.ErrGateway.MsgErr("unable to acquire tenant connection", err)
	}

	stmtTimeout := config.Config().QueryTimeout().Milliseconds()
	lockTimeout := config.Config().LockWaitTimeout().Milliseconds()
	_, err = conn.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = %d", stmtTimeout))
	if err == nil {
		_, err = conn.ExecContext(ctx, fmt.Sprintf("SET lock_timeout = %d", lockTimeout))
	}
	if err != nil {
		conn.Close()
		return nil, gwerror.ErrGateway.MsgErr("unable to configure tenant connection", err)
	}
	return conn, nil
}
