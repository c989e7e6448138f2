package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nexusdb/sqlgateway/internal/common/httpx"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/ddl"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
)

func (s *GatewayServer) listSchemas(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	schemas, err := s.inspect.ListSchemas(ctx, gwcommon.TenantIdFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"schemas": schemas},
	}, nil
}

func (s *GatewayServer) listTables(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	tables, err := s.inspect.ListTables(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "schemaName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"tables": tables},
	}, nil
}

func (s *GatewayServer) listColumns(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	columns, err := s.inspect.ListColumns(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "schemaName"), chi.URLParam(r, "tableName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"columns": columns},
	}, nil
}

func (s *GatewayServer) listRelationships(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	relationships, err := s.inspect.ListRelationships(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "schemaName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"relationships": relationships},
	}, nil
}

func (s *GatewayServer) listIndexes(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	indexes, err := s.inspect.ListIndexes(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "schemaName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"indexes": indexes},
	}, nil
}

func (s *GatewayServer) listTriggers(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	triggers, err := s.inspect.ListTriggers(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "schemaName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"triggers": triggers},
	}, nil
}

func (s *GatewayServer) listFunctions(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	functions, err := s.inspect.ListFunctions(ctx, gwcommon.TenantIdFromContext(ctx),
		chi.URLParam(r, "schemaName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"functions": functions},
	}, nil
}

func (s *GatewayServer) listPublications(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	publications, err := s.inspect.ListPublications(ctx, gwcommon.TenantIdFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"publications": publications},
	}, nil
}

func (s *GatewayServer) listExtensions(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	extensions, err := s.inspect.ListExtensions(ctx, gwcommon.TenantIdFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"extensions": extensions},
	}, nil
}

// createSchema compiles a structured schema definition and applies it
// atomically.
func (s *GatewayServer) createSchema(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	def := &ddl.SchemaDefinition{}
	if err := httpx.GetRequestData(r, def); err != nil {
		return nil, err
	}

	statements, err := ddl.CompileCreateSchema(def)
	if err != nil {
		return nil, err
	}
	if _, err := s.gw.Execute(ctx, gwcommon.TenantIdFromContext(ctx), statements, true); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   map[string]any{"name": def.Name, "statements": statements},
	}, nil
}

// createTable compiles a structured table definition and applies the whole
// sequence in one transaction, so a failing COMMENT or RLS statement leaves
// no table behind.
func (s *GatewayServer) createTable(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	def := &ddl.TableDefinition{}
	if err := httpx.GetRequestData(r, def); err != nil {
		return nil, err
	}
	if def.Schema == "" {
		def.Schema = chi.URLParam(r, "schemaName")
	}

	statements, err := ddl.CompileCreateTable(def)
	if err != nil {
		return nil, err
	}
	if _, err := s.gw.Execute(ctx, gwcommon.TenantIdFromContext(ctx), statements, true); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response: map[string]any{
			"schema":     def.Schema,
			"name":       def.Name,
			"statements": statements,
		},
	}, nil
}

func (s *GatewayServer) createIndex(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	def := &ddl.IndexDefinition{}
	if err := httpx.GetRequestData(r, def); err != nil {
		return nil, err
	}
	if def.Schema == "" {
		def.Schema = chi.URLParam(r, "schemaName")
	}

	statements, err := ddl.CompileCreateIndex(def)
	if err != nil {
		return nil, err
	}
	if _, err := s.gw.Execute(ctx, gwcommon.TenantIdFromContext(ctx), statements, true); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   map[string]any{"name": def.Name, "statements": statements},
	}, nil
}
