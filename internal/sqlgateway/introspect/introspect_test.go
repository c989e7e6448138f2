package introspect

import (
	"context"
	"testing"

	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/ddl"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gateway"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwcommon"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/sqlquote"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *gateway.Gateway, types.TenantId) {
	t.Helper()
	ctx := context.Background()
	store, err := metastore.New(ctx, config.Config().MetadataDb.Dsn())
	if err != nil {
		t.Skipf("metadata db not available: %v", err)
	}
	require.Nil(t, store.Migrate(ctx))

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
	t.Cleanup(func() {
		store.ClearQueryHistory(ctx, tenantID)
		store.DeleteTenantDatabase(ctx, tenantID)
		r.Close()
		store.Close()
	})
	return New(r), gateway.New(r, store), tenantID
}

func TestListSchemas(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	schemas, err := svc.ListSchemas(context.Background(), tenantID)
	require.Nil(t, err)

	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "public")
	assert.NotContains(t, names, "pg_catalog")
	assert.NotContains(t, names, "information_schema")
}

func TestListUnknownTenant(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ListSchemas(context.Background(), types.TenantId("TNOSUCH"))
	assert.ErrorIs(t, err, gwerror.ErrTenantNotFound)
}

// Tables created through the DDL compiler must come back from introspection
// under their exact name, including quotes and reserved words.
func TestTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, gw, tenantID := newTestService(t)

	table := `odd"name ` + gwcommon.NewDatabaseSuffix()
	stmts, cerr := ddl.CompileCreateTable(&ddl.TableDefinition{
		Schema:      "public",
		Name:        table,
		Description: "round trip target",
		Columns: []ddl.ColumnDefinition{
			{Name: "id", Type: "bigserial", IsPrimaryKey: true},
			{Name: "select", Type: "text", IsNullable: true},
		},
	})
	require.Nil(t, cerr)
	t.Cleanup(func() {
		gw.Execute(ctx, tenantID, []string{`DROP TABLE IF EXISTS "public".` + sqlquote.Ident(table)}, false)
	})

	_, err := gw.Execute(ctx, tenantID, stmts, true)
	require.Nil(t, err)

	tables, err := svc.ListTables(ctx, tenantID, "public")
	require.Nil(t, err)
	var found *TableInfo
	for i := range tables {
		if tables[i].Name == table {
			found = &tables[i]
			break
		}
	}
	require.NotNil(t, found, "created table not visible in introspection")
	assert.Equal(t, "round trip target", found.Description)
	assert.Equal(t, 2, found.Columns)

	columns, err := svc.ListColumns(ctx, tenantID, "public", table)
	require.Nil(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "id", columns[0].Name)
	assert.Equal(t, "select", columns[1].Name)
	assert.True(t, columns[1].IsNullable)
}

func TestListIndexesAndRelationships(t *testing.T) {
	ctx := context.Background()
	svc, gw, tenantID := newTestService(t)

	suffix := gwcommon.NewDatabaseSuffix()
	parent := "parent_" + suffix
	child := "child_" + suffix
	t.Cleanup(func() {
		gw.Execute(ctx, tenantID, []string{
			`DROP TABLE IF EXISTS "public".` + sqlquote.Ident(child),
			`DROP TABLE IF EXISTS "public".` + sqlquote.Ident(parent),
		}, true)
	})

	_, err := gw.Execute(ctx, tenantID, []string{
		`CREATE TABLE "public".` + sqlquote.Ident(parent) + ` ("id" BIGSERIAL PRIMARY KEY);`,
		`CREATE TABLE "public".` + sqlquote.Ident(child) +
			` ("id" BIGSERIAL PRIMARY KEY, "parent_id" BIGINT NOT NULL REFERENCES "public".` +
			sqlquote.Ident(parent) + ` ("id"));`,
		`CREATE INDEX ` + sqlquote.Ident("idx_"+child+"_parent") + ` ON "public".` +
			sqlquote.Ident(child) + ` ("parent_id");`,
	}, true)
	require.Nil(t, err)

	indexes, err := svc.ListIndexes(ctx, tenantID, "public")
	require.Nil(t, err)
	var idx *IndexInfo
	for i := range indexes {
		if indexes[i].Name == "idx_"+child+"_parent" {
			idx = &indexes[i]
			break
		}
	}
	require.NotNil(t, idx)
	assert.Equal(t, child, idx.TableName)
	assert.Equal(t, "btree", idx.IndexType)
	assert.Equal(t, []string{"parent_id"}, idx.Columns)
	assert.False(t, idx.IsUnique)

	rels, err := svc.ListRelationships(ctx, tenantID, "public")
	require.Nil(t, err)
	var rel *Relationship
	for i := range rels {
		if rels[i].From.Table == child {
			rel = &rels[i]
			break
		}
	}
	require.NotNil(t, rel)
	assert.Equal(t, "parent_id", rel.From.Column)
	assert.Equal(t, parent, rel.To.Table)
	assert.Equal(t, "id", rel.To.Column)
}

func TestListFunctionsAndTriggers(t *testing.T) {
	ctx := context.Background()
	svc, gw, tenantID := newTestService(t)

	suffix := gwcommon.NewDatabaseSuffix()
	fn := "touch_" + suffix
	table := "trig_" + suffix
	t.Cleanup(func() {
		gw.Execute(ctx, tenantID, []string{
			`DROP TABLE IF EXISTS "public".` + sqlquote.Ident(table),
			`DROP FUNCTION IF EXISTS "public".` + sqlquote.Ident(fn) + `()`,
		}, true)
	})

	_, err := gw.Execute(ctx, tenantID, []string{
		`CREATE FUNCTION "public".` + sqlquote.Ident(fn) +
			`() RETURNS trigger LANGUAGE plpgsql AS $$ BEGIN RETURN NEW; END $$;`,
		`CREATE TABLE "public".` + sqlquote.Ident(table) + ` ("id" BIGSERIAL PRIMARY KEY);`,
		`CREATE TRIGGER "on_change" BEFORE INSERT OR UPDATE ON "public".` + sqlquote.Ident(table) +
			` FOR EACH ROW EXECUTE FUNCTION "public".` + sqlquote.Ident(fn) + `();`,
	}, true)
	require.Nil(t, err)

	functions, err := svc.ListFunctions(ctx, tenantID, "public")
	require.Nil(t, err)
	var fi *FunctionInfo
	for i := range functions {
		if functions[i].Name == fn {
			fi = &functions[i]
			break
		}
	}
	require.NotNil(t, fi)
	assert.Equal(t, "plpgsql", fi.Language)
	assert.Equal(t, "trigger", fi.ReturnType)
	assert.Equal(t, "volatile", fi.Volatility)
	assert.False(t, fi.IsSecurityDefiner)
	assert.NotEmpty(t, fi.Definition)

	triggers, err := svc.ListTriggers(ctx, tenantID, "public")
	require.Nil(t, err)
	var ti *TriggerInfo
	for i := range triggers {
		if triggers[i].TableName == table {
			ti = &triggers[i]
			break
		}
	}
	require.NotNil(t, ti)
	assert.Equal(t, "on_change", ti.Name)
	assert.Equal(t, "BEFORE", ti.Timing)
	assert.Contains(t, ti.Event, "INSERT")
	assert.Contains(t, ti.Event, "UPDATE")
	assert.Equal(t, fn, ti.FunctionName)
	assert.True(t, ti.Enabled)
}

func TestListExtensions(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	extensions, err := svc.ListExtensions(context.Background(), tenantID)
	require.Nil(t, err)
	require.NotEmpty(t, extensions)

	var plpgsql *ExtensionInfo
	for i := range extensions {
		if extensions[i].Name == "plpgsql" {
			plpgsql = &extensions[i]
			break
		}
	}
	require.NotNil(t, plpgsql)
	assert.True(t, plpgsql.Installed)
}

func TestListPublications(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	// publications require owner privileges to create, so just assert the
	// listing is well-formed
	publications, err := svc.ListPublications(context.Background(), tenantID)
	require.Nil(t, err)
	for _, p := range publications {
		assert.NotEmpty(t, p.Name)
		assert.NotNil(t, p.Tables)
	}
}
