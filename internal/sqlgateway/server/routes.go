package server

import (
	"net/http"

	"github.com/nexusdb/sqlgateway/internal/common/httpx"
)

func (s *GatewayServer) tenantHandlers() []httpx.ResponseHandlerParam {
	return []httpx.ResponseHandlerParam{
		{
			Method:  http.MethodPost,
			Path:    "/query",
			Handler: s.execQuery,
		},
		{
			Method:  http.MethodGet,
			Path:    "/history",
			Handler: s.listHistory,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/history",
			Handler: s.clearHistory,
		},
		{
			Method:  http.MethodGet,
			Path:    "/saved-queries",
			Handler: s.listSavedQueries,
		},
		{
			Method:  http.MethodPost,
			Path:    "/saved-queries",
			Handler: s.createSavedQuery,
		},
		{
			Method:  http.MethodGet,
			Path:    "/saved-queries/{queryId}",
			Handler: s.getSavedQuery,
		},
		{
			Method:  http.MethodPut,
			Path:    "/saved-queries/{queryId}",
			Handler: s.updateSavedQuery,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/saved-queries/{queryId}",
			Handler: s.deleteSavedQuery,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas",
			Handler: s.listSchemas,
		},
		{
			Method:  http.MethodPost,
			Path:    "/schemas",
			Handler: s.createSchema,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas/{schemaName}/tables",
			Handler: s.listTables,
		},
		{
			Method:  http.MethodPost,
			Path:    "/schemas/{schemaName}/tables",
			Handler: s.createTable,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas/{schemaName}/tables/{tableName}/columns",
			Handler: s.listColumns,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas/{schemaName}/relationships",
			Handler: s.listRelationships,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas/{schemaName}/indexes",
			Handler: s.listIndexes,
		},
		{
			Method:  http.MethodPost,
			Path:    "/schemas/{schemaName}/indexes",
			Handler: s.createIndex,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas/{schemaName}/triggers",
			Handler: s.listTriggers,
		},
		{
			Method:  http.MethodGet,
			Path:    "/schemas/{schemaName}/functions",
			Handler: s.listFunctions,
		},
		{
			Method:  http.MethodGet,
			Path:    "/publications",
			Handler: s.listPublications,
		},
		{
			Method:  http.MethodGet,
			Path:    "/extensions",
			Handler: s.listExtensions,
		},
	}
}

func (s *GatewayServer) appHandlers() []httpx.ResponseHandlerParam {
	return []httpx.ResponseHandlerParam{
		{
			Method:  http.MethodPost,
			Path:    "/database/provision",
			Handler: s.provisionApp,
		},
		{
			Method:  http.MethodGet,
			Path:    "/database",
			Handler: s.getAppDatabase,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/database",
			Handler: s.deprovisionApp,
		},
	}
}
