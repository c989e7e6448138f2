package provision

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gateway"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *gateway.Gateway) {
	t.Helper()
	ctx := context.Background()
	store, err := metastore.New(ctx, config.Config().MetadataDb.Dsn())
	if err != nil {
		t.Skipf("metadata db not available: %v", err)
	}
	require.Nil(t, store.Migrate(ctx))

	admin, err := openAdmin(ctx)
	if err != nil {
		store.Close()
		t.Skipf("admin db not available: %v", err)
	}
	admin.Close()

	r := router.New(store)
	gw := gateway.New(r, store)
	svc := New(store, r, gw)
	t.Cleanup(func() {
		r.Close()
		store.Close()
	})
	return svc, gw
}

func newIds() (types.TenantId, types.AppId) {
	suffix := gwcommon.NewDatabaseSuffix()
	return types.TenantId("T" + suffix), types.AppId("app-" + suffix)
}

func TestProvisionIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	tenantID, appID := newIds()
	t.Cleanup(func() { svc.Deprovision(ctx, appID) })

	first, err := svc.Provision(ctx, tenantID, appID, Options{})
	require.Nil(t, err)
	assert.False(t, first.AlreadyExists)
	assert.Equal(t, types.DatabaseStatusActive, first.Status)
	assert.NotEmpty(t, first.DatabaseName)

	second, err := svc.Provision(ctx, tenantID, appID, Options{})
	require.Nil(t, err)
	assert.True(t, second.AlreadyExists)
	assert.Equal(t, first.DatabaseName, second.DatabaseName)
}

func TestProvisionConcurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	tenantID, appID := newIds()
	t.Cleanup(func() { svc.Deprovision(ctx, appID) })

	const callers = 10
	results := make([]*Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Provision(ctx, tenantID, appID, Options{})
		}(i)
	}
	wg.Wait()

	// exactly one database, exactly one caller that created it
	created := 0
	names := map[string]bool{}
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		names[results[i].DatabaseName] = true
		if !results[i].AlreadyExists {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Len(t, names, 1)
}

func TestProvisionStarterSchema(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	tenantID, appID := newIds()
	t.Cleanup(func() { svc.Deprovision(ctx, appID) })

	result, err := svc.Provision(ctx, tenantID, appID, Options{InitializeSchema: true})
	require.Nil(t, err)
	require.Equal(t, types.DatabaseStatusActive, result.Status)

	qr, err := gw.Execute(ctx, tenantID, []string{
		`SELECT table_name FROM information_schema.tables WHERE table_schema = 'app' ORDER BY table_name`,
	}, false)
	require.Nil(t, err)
	require.Equal(t, int64(2), qr.RowCount)
	assert.Equal(t, "sessions", qr.Rows[0]["table_name"])
	assert.Equal(t, "users", qr.Rows[1]["table_name"])
}

func TestProvisionAppFileAnalysis(t *testing.T) {
	ctx := context.Background()
	svc, gw := newTestService(t)
	tenantID, appID := newIds()
	t.Cleanup(func() { svc.Deprovision(ctx, appID) })

	manifest := `{
		"entities": [
			{"name": "Invoice", "fields": [
				{"name": "total", "type": "number", "required": true},
				{"name": "issued_at", "type": "datetime"}
			]},
			{"name": "Broken"}
		]
	}`
	result, err := svc.Provision(ctx, tenantID, appID, Options{
		AppFiles: []AppFile{
			{Path: "app/schema.json", Content: manifest},
			{Path: "app/readme.md", Content: "not a manifest"},
		},
	})
	require.Nil(t, err)
	assert.True(t, result.SchemaGenerated)
	assert.Equal(t, 1, result.TablesCreated)

	qr, err := gw.Execute(ctx, tenantID, []string{
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'app' AND table_name = 'invoice' ORDER BY ordinal_position`,
	}, false)
	require.Nil(t, err)
	require.Equal(t, int64(3), qr.RowCount)
	assert.Equal(t, "id", qr.Rows[0]["column_name"])
	assert.Equal(t, "total", qr.Rows[1]["column_name"])

	// the analysis outcome is persisted with the claim
	info, err := svc.GetInfo(ctx, appID, false)
	require.Nil(t, err)
	assert.True(t, info.HasDatabase)
}

func TestGetInfoMasksPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	tenantID, appID := newIds()
	t.Cleanup(func() { svc.Deprovision(ctx, appID) })

	_, err := svc.Provision(ctx, tenantID, appID, Options{})
	require.Nil(t, err)

	info, err := svc.GetInfo(ctx, appID, false)
	require.Nil(t, err)
	assert.True(t, info.HasDatabase)
	assert.Contains(t, info.ConnectionString, "****")
	assert.NotContains(t, info.ConnectionString, "password=")

	td, gerr := svc.store.GetTenantDatabase(ctx, tenantID)
	require.Nil(t, gerr)
	assert.False(t, strings.Contains(info.ConnectionString, td.Password))

	// the credential is available on explicit request
	revealed, err := svc.GetInfo(ctx, appID, true)
	require.Nil(t, err)
	assert.Contains(t, revealed.ConnectionString, td.Password)
	assert.NotContains(t, revealed.ConnectionString, "****")
}

func TestGetInfoUnprovisioned(t *testing.T) {
	svc, _ := newTestService(t)
	info, err := svc.GetInfo(context.Background(), types.AppId("app-never"), false)
	require.Nil(t, err)
	assert.False(t, info.HasDatabase)
	assert.Empty(t, info.ConnectionString)
}

func TestProvisionRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	tenantID, appID := newIds()
	t.Cleanup(func() { svc.Deprovision(ctx, appID) })

	// leftover claim from a run whose rollback could not remove the record
	stale := &metastore.TenantDatabase{
		TenantID:     tenantID,
		Host:         config.Config().TenantDbHost,
		Port:         config.Config().TenantDbPort,
		DatabaseName: "tenant_stale_" + gwcommon.NewDatabaseSuffix(),
		Username:     "role_stale_" + gwcommon.NewDatabaseSuffix(),
		Password:     "unused",
		Status:       types.DatabaseStatusError,
	}
	require.Nil(t, svc.store.CreateTenantDatabase(ctx, stale))

	result, err := svc.Provision(ctx, tenantID, appID, Options{})
	require.Nil(t, err)
	assert.False(t, result.AlreadyExists)
	assert.Equal(t, types.DatabaseStatusActive, result.Status)
	assert.NotEqual(t, stale.DatabaseName, result.DatabaseName)

	td, gerr := svc.store.GetTenantDatabase(ctx, tenantID)
	require.Nil(t, gerr)
	assert.Equal(t, result.DatabaseName, td.DatabaseName)
}

func TestDeprovisionIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	tenantID, appID := newIds()

	_, err := svc.Provision(ctx, tenantID, appID, Options{})
	require.Nil(t, err)

	require.Nil(t, svc.Deprovision(ctx, appID))

	info, err := svc.GetInfo(ctx, appID, false)
	require.Nil(t, err)
	assert.False(t, info.HasDatabase)

	// the per-app lock entry is released with the app
	svc.mu.Lock()
	_, held := svc.locks[appID]
	svc.mu.Unlock()
	assert.False(t, held)

	// second call is a no-op
	assert.Nil(t, svc.Deprovision(ctx, appID))
}
