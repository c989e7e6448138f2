package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *GatewayServer {
	t.Helper()
	ctx := context.Background()
	store, err := metastore.New(ctx, config.Config().MetadataDb.Dsn())
	if err != nil {
		t.Skipf("metadata db not available: %v", err)
	}
	require.Nil(t, store.Migrate(ctx))

	s, serr := CreateNewServer(store)
	require.NoError(t, serr)
	s.MountHandlers()
	t.Cleanup(func() {
		s.Shutdown(ctx)
		store.Close()
	})
	return s
}

// registerTenant points a tenant record at the metadata database itself so
// handler tests have a live query target.
func registerTenant(t *testing.T, s *GatewayServer) types.TenantId {
	t.Helper()
	ctx := context.Background()
	dbCfg := config.Config().MetadataDb
	tenantID := types.TenantId("T" + gwcommon.NewDatabaseSuffix())
	td := &metastore.TenantDatabase{
		TenantID:     tenantID,
		Host:         dbCfg.Host,
		Port:         dbCfg.Port,
		DatabaseName: dbCfg.DbName,
		Username:     dbCfg.User,
		Password:     dbCfg.Password,
		Status:       types.DatabaseStatusActive,
	}
	require.Nil(t, s.store.CreateTenantDatabase(ctx, td))
	t.Cleanup(func() {
		s.store.ClearQueryHistory(ctx, tenantID)
		s.store.DeleteTenantDatabase(ctx, tenantID)
	})
	return tenantID
}

func executeTestRequest(t *testing.T, s *GatewayServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func checkHeader(t *testing.T, h http.Header) {
	expected := "application/json"
	got := h.Get("Content-Type")
	assert.Equal(t, expected, got, "Content-Type expected %s, got %s", expected, got)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
}
