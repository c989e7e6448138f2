package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	s := newTestServer(t)
	rr := executeTestRequest(t, s, http.MethodGet, "/version", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	checkHeader(t, rr.Result().Header)

	rsp := &GetVersionRsp{}
	decodeBody(t, rr, rsp)
	assert.Equal(t, "v1", rsp.ApiVersion)
	assert.Contains(t, rsp.ServerVersion, "NexusDB SQL Gateway")
}

func TestExecQuery(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)

	rr := executeTestRequest(t, s, http.MethodPost,
		"/tenants/"+tenantID.String()+"/query",
		&QueryReq{Sql: "SELECT 7 AS lucky"})
	require.Equal(t, http.StatusOK, rr.Code)
	checkHeader(t, rr.Result().Header)

	var rsp struct {
		Columns  []string         `json:"columns"`
		Rows     []map[string]any `json:"rows"`
		RowCount int64            `json:"row_count"`
	}
	decodeBody(t, rr, &rsp)
	assert.Equal(t, []string{"lucky"}, rsp.Columns)
	require.Len(t, rsp.Rows, 1)
	assert.EqualValues(t, 7, rsp.Rows[0]["lucky"])
}

func TestExecQuerySyntaxError(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)

	rr := executeTestRequest(t, s, http.MethodPost,
		"/tenants/"+tenantID.String()+"/query",
		&QueryReq{Sql: "SELEC 1"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var rsp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	decodeBody(t, rr, &rsp)
	assert.Equal(t, "syntax_error", rsp.Code)
	assert.NotEmpty(t, rsp.Error)
}

func TestExecQueryUnknownTenant(t *testing.T) {
	s := newTestServer(t)

	rr := executeTestRequest(t, s, http.MethodPost,
		"/tenants/TNOSUCH/query",
		&QueryReq{Sql: "SELECT 1"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	var rsp struct {
		Code string `json:"code"`
	}
	decodeBody(t, rr, &rsp)
	assert.Equal(t, "tenant_not_found", rsp.Code)
}

func TestCreateTableEndpoint(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)
	base := "/tenants/" + tenantID.String()

	body := map[string]any{
		"name": "srvtest_orders",
		"columns": []map[string]any{
			{"name": "id", "type": "uuid", "is_primary_key": true,
				"default_value": "gen_random_uuid()", "default_is_expr": true},
			{"name": "total", "type": "numeric", "precision": 10, "scale": 2},
		},
	}
	t.Cleanup(func() {
		executeTestRequest(t, s, http.MethodPost, base+"/query",
			&QueryReq{Sql: `DROP TABLE IF EXISTS "public"."srvtest_orders"`})
	})

	rr := executeTestRequest(t, s, http.MethodPost, base+"/schemas/public/tables", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// visible through introspection
	rr = executeTestRequest(t, s, http.MethodGet, base+"/schemas/public/tables", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tablesRsp struct {
		Tables []struct {
			Name string `json:"name"`
		} `json:"tables"`
	}
	decodeBody(t, rr, &tablesRsp)
	found := false
	for _, tbl := range tablesRsp.Tables {
		if tbl.Name == "srvtest_orders" {
			found = true
		}
	}
	assert.True(t, found, "created table not listed")

	rr = executeTestRequest(t, s, http.MethodGet,
		base+"/schemas/public/tables/srvtest_orders/columns", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var columnsRsp struct {
		Columns []struct {
			Name     string `json:"name"`
			DataType string `json:"data_type"`
		} `json:"columns"`
	}
	decodeBody(t, rr, &columnsRsp)
	require.Len(t, columnsRsp.Columns, 2)
	assert.Equal(t, "id", columnsRsp.Columns[0].Name)
	assert.Equal(t, "numeric", columnsRsp.Columns[1].DataType)
}

func TestCreateTableEndpointRejectsBadType(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)

	body := map[string]any{
		"name": "bad",
		"columns": []map[string]any{
			{"name": "a", "type": "money"},
		},
	}
	rr := executeTestRequest(t, s, http.MethodPost,
		"/tenants/"+tenantID.String()+"/schemas/public/tables", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var rsp struct {
		Code string `json:"code"`
	}
	decodeBody(t, rr, &rsp)
	assert.Equal(t, "validation_error", rsp.Code)
}

func TestSavedQueryEndpoints(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)
	base := "/tenants/" + tenantID.String() + "/saved-queries"

	rr := executeTestRequest(t, s, http.MethodPost, base, &SavedQueryReq{
		Name: "recent signups",
		Sql:  "SELECT * FROM app.users ORDER BY created_at DESC LIMIT 10",
		Tags: []string{"users"},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := &savedQueryRspBody{}
	decodeBody(t, rr, created)
	require.NotEmpty(t, created.Id)
	t.Cleanup(func() {
		executeTestRequest(t, s, http.MethodDelete, base+"/"+created.Id, nil)
	})

	rr = executeTestRequest(t, s, http.MethodGet, base+"/"+created.Id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := &savedQueryRspBody{}
	decodeBody(t, rr, got)
	assert.Equal(t, "recent signups", got.Name)
	assert.Equal(t, []string{"users"}, got.Tags)

	rr = executeTestRequest(t, s, http.MethodPut, base+"/"+created.Id, &SavedQueryReq{
		Name: "recent signups v2",
		Sql:  got.Sql,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = executeTestRequest(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var listRsp struct {
		SavedQueries []savedQueryRspBody `json:"saved_queries"`
	}
	decodeBody(t, rr, &listRsp)
	require.Len(t, listRsp.SavedQueries, 1)
	assert.Equal(t, "recent signups v2", listRsp.SavedQueries[0].Name)

	rr = executeTestRequest(t, s, http.MethodDelete, base+"/"+created.Id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = executeTestRequest(t, s, http.MethodGet, base+"/"+created.Id, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSavedQueryValidation(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)

	rr := executeTestRequest(t, s, http.MethodPost,
		"/tenants/"+tenantID.String()+"/saved-queries",
		&SavedQueryReq{Name: "no sql"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	tenantID := registerTenant(t, s)
	base := "/tenants/" + tenantID.String()

	rr := executeTestRequest(t, s, http.MethodPost, base+"/query",
		&QueryReq{Sql: "SELECT 1"})
	require.Equal(t, http.StatusOK, rr.Code)

	// history writes are asynchronous
	var listRsp struct {
		History []struct {
			Sql    string `json:"sql"`
			Status string `json:"status"`
		} `json:"history"`
	}
	require.Eventually(t, func() bool {
		rr = executeTestRequest(t, s, http.MethodGet, base+"/history", nil)
		if rr.Code != http.StatusOK {
			return false
		}
		listRsp.History = nil
		decodeBody(t, rr, &listRsp)
		return len(listRsp.History) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "SELECT 1", listRsp.History[0].Sql)
	assert.Equal(t, "success", listRsp.History[0].Status)

	rr = executeTestRequest(t, s, http.MethodDelete, base+"/history", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = executeTestRequest(t, s, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listRsp.History = nil
	decodeBody(t, rr, &listRsp)
	assert.Empty(t, listRsp.History)
}

func TestAppDatabaseUnprovisioned(t *testing.T) {
	s := newTestServer(t)

	rr := executeTestRequest(t, s, http.MethodGet, "/generated-apps/app-unknown/database", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rsp struct {
		HasDatabase bool `json:"has_database"`
	}
	decodeBody(t, rr, &rsp)
	assert.False(t, rsp.HasDatabase)
}

func TestProvisionRequiresTenant(t *testing.T) {
	s := newTestServer(t)

	rr := executeTestRequest(t, s, http.MethodPost, "/generated-apps/app-x/database/provision",
		map[string]any{"initialize_schema": true})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
