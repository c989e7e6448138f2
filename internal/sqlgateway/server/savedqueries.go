package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nexusdb/sqlgateway/internal/common/httpx"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
)

// SavedQueryReq is the create/update payload for a saved query.
type SavedQueryReq struct {
	Name        string   `json:"name"`
	Sql         string   `json:"sql"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func (s *GatewayServer) listSavedQueries(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	queries, err := s.store.ListSavedQueries(ctx, gwcommon.TenantIdFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"saved_queries": savedQueryRsps(queries)},
	}, nil
}

func (s *GatewayServer) createSavedQuery(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	req := &SavedQueryReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if req.Name == "" || req.Sql == "" {
		return nil, httpx.ErrInvalidRequest("name and sql are required")
	}

	sq := &metastore.SavedQuery{
		TenantID:    gwcommon.TenantIdFromContext(ctx),
		Name:        req.Name,
		SQL:         req.Sql,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if err := s.store.CreateSavedQuery(ctx, sq); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   r.URL.Path + "/" + sq.ID,
		Response:   savedQueryRsp(sq),
	}, nil
}

func (s *GatewayServer) getSavedQuery(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	sq, err := s.store.GetSavedQuery(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "queryId"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   savedQueryRsp(sq),
	}, nil
}

func (s *GatewayServer) updateSavedQuery(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	req := &SavedQueryReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if req.Name == "" || req.Sql == "" {
		return nil, httpx.ErrInvalidRequest("name and sql are required")
	}

	sq := &metastore.SavedQuery{
		ID:          chi.URLParam(r, "queryId"),
		TenantID:    gwcommon.TenantIdFromContext(ctx),
		Name:        req.Name,
		SQL:         req.Sql,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if err := s.store.UpdateSavedQuery(ctx, sq); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   savedQueryRsp(sq),
	}, nil
}

func (s *GatewayServer) deleteSavedQuery(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	err := s.store.DeleteSavedQuery(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "queryId"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

type savedQueryRspBody struct {
	Id          string   `json:"id"`
	Name        string   `json:"name"`
	Sql         string   `json:"sql"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func savedQueryRsp(sq *metastore.SavedQuery) *savedQueryRspBody {
	return &savedQueryRspBody{
		Id:          sq.ID,
		Name:        sq.Name,
		Sql:         sq.SQL,
		Description: sq.Description,
		Tags:        sq.Tags,
		CreatedAt:   sq.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   sq.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func savedQueryRsps(queries []*metastore.SavedQuery) []*savedQueryRspBody {
	rsps := make([]*savedQueryRspBody, 0, len(queries))
	for _, sq := range queries {
		rsps = append(rsps, savedQueryRsp(sq))
	}
	return rsps
}
