package server

import (
	"net/http"

	"github.com/nexusdb/sqlgateway/internal/common/httpx"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/provision"
	"github.com/nexusdb/sqlgateway/pkg/types"
)

// ProvisionReq names the owning tenant and the optional initialization
// steps.
type ProvisionReq struct {
	TenantId         string              `json:"tenant_id"`
	InitializeSchema bool                `json:"initialize_schema,omitempty"`
	AppFiles         []provision.AppFile `json:"app_files,omitempty"`
}

func (s *GatewayServer) provisionApp(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	req := &ProvisionReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if req.TenantId == "" {
		return nil, httpx.ErrInvalidTenantId()
	}

	result, err := s.apps.Provision(ctx, types.TenantId(req.TenantId),
		gwcommon.AppIdFromContext(ctx), provision.Options{
			InitializeSchema: req.InitializeSchema,
			AppFiles:         req.AppFiles,
		})
	if err != nil {
		return nil, err
	}

	statusCode := http.StatusCreated
	if result.AlreadyExists {
		statusCode = http.StatusOK
	}
	return &httpx.Response{
		StatusCode: statusCode,
		Response:   result,
	}, nil
}

func (s *GatewayServer) getAppDatabase(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	reveal := r.URL.Query().Get("reveal") == "true"
	info, err := s.apps.GetInfo(ctx, gwcommon.AppIdFromContext(ctx), reveal)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   info,
	}, nil
}

func (s *GatewayServer) deprovisionApp(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if err := s.apps.Deprovision(ctx, gwcommon.AppIdFromContext(ctx)); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]string{"message": "database deprovisioned"},
	}, nil
}
