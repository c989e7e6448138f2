package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/ddl"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/sqlquote"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, types.TenantId) {
	t.Helper()
	ctx := context.Background()
	store, err := metastore.New(ctx, config.Config().MetadataDb.Dsn())
	if err != nil {
		t.Skipf("metadata db not available: %v", err)
	}
	require.Nil(t, store.Migrate(ctx))

	// point the tenant record at the metadata database so statements have a
	// live target
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
	require.Nil(t, store.CreateTenantDatabase(ctx, td))

	r := router.New(store)
	g := New(r, store)
	t.Cleanup(func() {
		store.ClearQueryHistory(ctx, tenantID)
		store.DeleteTenantDatabase(ctx, tenantID)
		r.Close()
		store.Close()
	})
	return g, tenantID
}

func TestExecuteSelect(t *testing.T) {
	g, tenantID := newTestGateway(t)
	result, err := g.Execute(context.Background(), tenantID,
		[]string{"SELECT 1 AS one, 'a' AS letter"}, false)
	require.Nil(t, err)
	assert.Equal(t, []string{"one", "letter"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(1), result.RowCount)
	assert.Equal(t, "a", result.Rows[0]["letter"])
}

func TestExecuteValidation(t *testing.T) {
	g, tenantID := newTestGateway(t)

	_, err := g.Execute(context.Background(), tenantID, nil, false)
	assert.ErrorIs(t, err, gwerror.ErrValidation)

	_, err = g.Execute(context.Background(), tenantID, []string{"  \n"}, false)
	assert.ErrorIs(t, err, gwerror.ErrValidation)

	_, err = g.Execute(context.Background(), tenantID,
		[]string{"DROP DATABASE postgres"}, false)
	assert.ErrorIs(t, err, gwerror.ErrValidation)
}

func TestExecuteSyntaxError(t *testing.T) {
	g, tenantID := newTestGateway(t)
	_, err := g.Execute(context.Background(), tenantID,
		[]string{"SELEC 1"}, false)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, gwerror.ErrSyntax)
}

func TestExecuteUnknownTenant(t *testing.T) {
	g, _ := newTestGateway(t)
	_, err := g.Execute(context.Background(), types.TenantId("TNOSUCH"),
		[]string{"SELECT 1"}, false)
	assert.ErrorIs(t, err, gwerror.ErrTenantNotFound)
}

func TestExecuteAtomicRollback(t *testing.T) {
	ctx := context.Background()
	g, tenantID := newTestGateway(t)
	table := "gwtest_" + gwcommon.NewDatabaseSuffix()

	stmts, cerr := ddl.CompileCreateTable(&ddl.TableDefinition{
		Schema: "public",
		Name:   table,
		Columns: []ddl.ColumnDefinition{
			{Name: "id", Type: "bigserial", IsPrimaryKey: true},
		},
	})
	require.Nil(t, cerr)
	// second statement references a column that does not exist, so the whole
	// sequence must roll back
	stmts = append(stmts,
		`COMMENT ON COLUMN "public".`+sqlquote.Ident(table)+`."missing" IS 'x';`)

	_, err := g.Execute(ctx, tenantID, stmts, true)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, gwerror.ErrStatementFailed)
	assert.Contains(t, err.Error(), "statement 2 of 2")

	// no table left behind
	result, err := g.Execute(ctx, tenantID, []string{
		"SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = " +
			sqlquote.Literal(table),
	}, false)
	require.Nil(t, err)
	assert.Equal(t, int64(0), result.RowCount)
}

func TestExecuteAtomicSuccess(t *testing.T) {
	ctx := context.Background()
	g, tenantID := newTestGateway(t)
	table := "gwtest_" + gwcommon.NewDatabaseSuffix()
	t.Cleanup(func() {
		g.Execute(ctx, tenantID, []string{`DROP TABLE IF EXISTS "public".` + sqlquote.Ident(table)}, false)
	})

	stmts := []string{
		`CREATE TABLE "public".` + sqlquote.Ident(table) + ` ("id" BIGSERIAL PRIMARY KEY, "name" TEXT NOT NULL);`,
		`INSERT INTO "public".` + sqlquote.Ident(table) + ` ("name") VALUES ('a'), ('b');`,
		`SELECT "name" FROM "public".` + sqlquote.Ident(table) + ` ORDER BY "id";`,
	}
	result, err := g.Execute(ctx, tenantID, stmts, true)
	require.Nil(t, err)
	assert.Equal(t, int64(2), result.RowCount)
	assert.Equal(t, "a", result.Rows[0]["name"])
}

func TestExecuteRowsAffected(t *testing.T) {
	ctx := context.Background()
	g, tenantID := newTestGateway(t)

	table := "gwtest_" + gwcommon.NewDatabaseSuffix()
	t.Cleanup(func() {
		g.Execute(ctx, tenantID, []string{`DROP TABLE IF EXISTS "public".` + sqlquote.Ident(table)}, false)
	})
	_, err := g.Execute(ctx, tenantID, []string{
		`CREATE TABLE "public".` + sqlquote.Ident(table) + ` ("id" BIGSERIAL PRIMARY KEY, "name" TEXT NOT NULL);`,
	}, false)
	require.Nil(t, err)

	result, err := g.Execute(ctx, tenantID, []string{
		`INSERT INTO "public".` + sqlquote.Ident(table) + ` ("name") VALUES ('a'), ('b'), ('c')`,
	}, false)
	require.Nil(t, err)
	assert.Equal(t, int64(3), result.RowCount)
	assert.Empty(t, result.Rows)

	result, err = g.Execute(ctx, tenantID, []string{
		`UPDATE "public".` + sqlquote.Ident(table) + ` SET "name" = 'x' WHERE "name" <> 'c'`,
	}, false)
	require.Nil(t, err)
	assert.Equal(t, int64(2), result.RowCount)

	// RETURNING still yields rows
	result, err = g.Execute(ctx, tenantID, []string{
		`INSERT INTO "public".` + sqlquote.Ident(table) + ` ("name") VALUES ('d') RETURNING "id"`,
	}, false)
	require.Nil(t, err)
	assert.Equal(t, int64(1), result.RowCount)
	require.Len(t, result.Rows, 1)
}

func TestExecuteTimeout(t *testing.T) {
	g, tenantID := newTestGateway(t)

	saved := config.Config().StatementTimeout
	config.Config().StatementTimeout = "2s"
	t.Cleanup(func() { config.Config().StatementTimeout = saved })

	start := time.Now()
	_, err := g.Execute(context.Background(), tenantID,
		[]string{"SELECT pg_sleep(10)"}, false)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, gwerror.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteRecordsHistory(t *testing.T) {
	ctx := context.Background()
	g, tenantID := newTestGateway(t)

	_, err := g.Execute(ctx, tenantID, []string{"SELECT 42 AS answer"}, false)
	require.Nil(t, err)

	// history is written on a detached goroutine
	var entries []*metastore.QueryHistoryEntry
	require.Eventually(t, func() bool {
		var lerr error
		entries, lerr = g.store.ListQueryHistory(ctx, tenantID)
		return lerr == nil && len(entries) == 1
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "SELECT 42 AS answer", entries[0].SQL)
	assert.Equal(t, types.QueryStatusSuccess, entries[0].Status)
	require.NotNil(t, entries[0].RowCount)
	assert.Equal(t, int64(1), *entries[0].RowCount)
}
