// Package server assembles the HTTP surface of the gateway: tenant-scoped
// query and introspection routes, app provisioning routes, and the ambient
// middleware stack.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/nexusdb/sqlgateway/internal/common/httpx"
	commonmiddleware "github.com/nexusdb/sqlgateway/internal/common/middleware"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gateway"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/introspect"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/provision"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/rs/zerolog/log"
)

func init() {
	// API error responses carry the gateway's machine-readable codes
	httpx.ErrorCode = gwerror.Code
}

type GatewayServer struct {
	Router *chi.Mux

	store   *metastore.Store
	tenants *router.Router
	gw      *gateway.Gateway
	inspect *introspect.Service
	apps    *provision.Service
}

// CreateNewServer wires the services on top of an opened metadata store.
func CreateNewServer(store *metastore.Store) (*GatewayServer, error) {
	s := &GatewayServer{
		Router: chi.NewRouter(),
		store:  store,
	}
	s.tenants = router.New(store)
	s.gw = gateway.New(s.tenants, store)
	s.inspect = introspect.New(s.tenants)
	s.apps = provision.New(store, s.tenants, s.gw)
	return s, nil
}

func (s *GatewayServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
			MaxAge:         300,
		}))
	}

	s.Router.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Use(s.loadTenant)
		for _, handler := range s.tenantHandlers() {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
	s.Router.Route("/generated-apps/{appId}", func(r chi.Router) {
		r.Use(s.loadApp)
		for _, handler := range s.appHandlers() {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
	s.Router.Get("/version", s.getVersion)
}

// Shutdown closes the tenant pools. The metadata store is owned by the
// caller that opened it.
func (s *GatewayServer) Shutdown(ctx context.Context) {
	s.tenants.Close()
	log.Ctx(ctx).Info().Msg("gateway server shut down")
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *GatewayServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "NexusDB SQL Gateway: 0.1.0",
		ApiVersion:    "v1",
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}
