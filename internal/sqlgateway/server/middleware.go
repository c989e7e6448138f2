package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nexusdb/sqlgateway/internal/common/httpx"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/pkg/types"
)

const maxIdLen = 64

// loadTenant places the tenant ID from the URL into the request context.
// Tenant existence is checked later by the connection router; this only
// rejects IDs that are structurally unusable.
func (s *GatewayServer) loadTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantId := chi.URLParam(r, "tenantId")
		if tenantId == "" || len(tenantId) > maxIdLen {
			httpx.ErrInvalidTenantId().Send(w)
			return
		}
		ctx := gwcommon.SetTenantIdInContext(r.Context(), types.TenantId(tenantId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadApp places the app ID from the URL into the request context.
func (s *GatewayServer) loadApp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appId := chi.URLParam(r, "appId")
		if appId == "" || len(appId) > maxIdLen {
			httpx.ErrInvalidAppId().Send(w)
			return
		}
		ctx := gwcommon.SetAppIdInContext(r.Context(), types.AppId(appId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
