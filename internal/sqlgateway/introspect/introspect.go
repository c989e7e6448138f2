// Package introspect serves read-only views over the Postgres system
// catalogs of a tenant database, translated into the shapes the workbench
// renders. Nothing here mutates state; every listing is safe to call
// concurrently and repeatedly.
package introspect

import (
	"context"
	"database/sql"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

type Service struct {
	router *router.Router
}

func New(r *router.Router) *Service {
	return &Service{router: r}
}

// withConn acquires a guarded connection on the tenant's pool and runs fn.
func (s *Service) withConn(ctx context.Context, tenantID types.TenantId, fn func(conn *sql.Conn) apperrors.Error) apperrors.Error {
	pool, err := s.router.Pool(ctx, tenantID)
	if err != nil {
		return err
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

func catalogError(ctx context.Context, what string, err error) apperrors.Error {
	log.Ctx(ctx).Error().Err(err).Str("listing", what).Msg("catalog query failed")
	return gwerror.ErrGateway.Msg("unable to list " + what)
}
