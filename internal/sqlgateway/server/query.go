package server

import (
	"net/http"
	"time"

	"github.com/nexusdb/sqlgateway/internal/common/httpx"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
)

// QueryReq is the workbench "Run" request. Either Sql (one ad-hoc statement)
// or Statements (an ordered sequence, run atomically) must be set.
type QueryReq struct {
	Sql        string   `json:"sql,omitempty"`
	Statements []string `json:"statements,omitempty"`
	Atomic     bool     `json:"atomic,omitempty"`
}

func (s *GatewayServer) execQuery(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	req := &QueryReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}

	statements := req.Statements
	if len(statements) == 0 && req.Sql != "" {
		statements = []string{req.Sql}
	}

	result, err := s.gw.Execute(ctx, gwcommon.TenantIdFromContext(ctx), statements, req.Atomic)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   result,
	}, nil
}

func (s *GatewayServer) listHistory(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	entries, err := s.store.ListQueryHistory(ctx, gwcommon.TenantIdFromContext(ctx))
	if err != nil {
		return nil, err
	}

	type historyRsp struct {
		Id           string  `json:"id"`
		Sql          string  `json:"sql"`
		Status       string  `json:"status"`
		DurationMs   int64   `json:"duration_ms"`
		RowCount     *int64  `json:"row_count,omitempty"`
		ErrorMessage *string `json:"error_message,omitempty"`
		ExecutedAt   string  `json:"executed_at"`
	}
	rsp := make([]historyRsp, 0, len(entries))
	for _, e := range entries {
		rsp = append(rsp, historyRsp{
			Id:           e.ID,
			Sql:          e.SQL,
			Status:       string(e.Status),
			DurationMs:   e.DurationMs,
			RowCount:     e.RowCount,
			ErrorMessage: e.ErrorMessage,
			ExecutedAt:   e.ExecutedAt.UTC().Format(time.RFC3339),
		})
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"history": rsp},
	}, nil
}

func (s *GatewayServer) clearHistory(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if err := s.store.ClearQueryHistory(ctx, gwcommon.TenantIdFromContext(ctx)); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}
