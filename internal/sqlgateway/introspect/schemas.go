package introspect

import (
	"context"
	"database/sql"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/pkg/types"
)

type SchemaInfo struct {
	Name string `json:"name"`
}

type TableInfo struct {
	Name        string `json:"name"`
	Schema      string `json:"schema"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	RowEstimate int64  `json:"rows"`
	Size        string `json:"size"`
	Columns     int    `json:"columns"`
}

type ColumnInfo struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	Default    string `json:"default,omitempty"`
	Position   int    `json:"position"`
}

type TableRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Relationship is one foreign key edge between two tables.
type Relationship struct {
	From           TableRef `json:"from"`
	To             TableRef `json:"to"`
	Type           string   `json:"type"`
	ConstraintName string   `json:"constraint_name"`
}

// ListSchemas returns the user-visible schemas of the tenant database.
func (s *Service) ListSchemas(ctx context.Context, tenantID types.TenantId) ([]SchemaInfo, apperrors.Error) {
	query := `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		ORDER BY schema_name`

	schemas := []SchemaInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return catalogError(ctx, "schemas", err)
		}
		defer rows.Close()
		for rows.Next() {
			var si SchemaInfo
			if err := rows.Scan(&si.Name); err != nil {
				return catalogError(ctx, "schemas", err)
			}
			schemas = append(schemas, si)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "schemas", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schemas, nil
}

// ListTables returns the tables of one schema with size and row estimates
// from pg_class. Row counts are planner estimates, not exact counts.
func (s *Service) ListTables(ctx context.Context, tenantID types.TenantId, schema string) ([]TableInfo, apperrors.Error) {
	query := `
		SELECT t.table_name,
		       t.table_schema,
		       t.table_type,
		       COALESCE(obj_description(c.oid), ''),
		       GREATEST(COALESCE(c.reltuples::bigint, 0), 0),
		       COALESCE(pg_size_pretty(pg_total_relation_size(c.oid)), ''),
		       (SELECT count(*) FROM information_schema.columns col
		        WHERE col.table_schema = t.table_schema AND col.table_name = t.table_name)
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_schema = $1
		ORDER BY t.table_name`

	tables := []TableInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, schema)
		if err != nil {
			return catalogError(ctx, "tables", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ti TableInfo
			if err := rows.Scan(&ti.Name, &ti.Schema, &ti.Type, &ti.Description,
				&ti.RowEstimate, &ti.Size, &ti.Columns); err != nil {
				return catalogError(ctx, "tables", err)
			}
			tables = append(tables, ti)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "tables", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// ListColumns returns the columns of one table in ordinal order.
func (s *Service) ListColumns(ctx context.Context, tenantID types.TenantId, schema, table string) ([]ColumnInfo, apperrors.Error) {
	query := `
		SELECT column_name,
		       data_type,
		       is_nullable = 'YES',
		       COALESCE(column_default, ''),
		       ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	columns := []ColumnInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, schema, table)
		if err != nil {
			return catalogError(ctx, "columns", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ci ColumnInfo
			if err := rows.Scan(&ci.Name, &ci.DataType, &ci.IsNullable, &ci.Default, &ci.Position); err != nil {
				return catalogError(ctx, "columns", err)
			}
			columns = append(columns, ci)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "columns", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// ListRelationships returns the foreign key edges originating in schema.
func (s *Service) ListRelationships(ctx context.Context, tenantID types.TenantId, schema string) ([]Relationship, apperrors.Error) {
	query := `
		SELECT tc.table_schema,
		       tc.table_name,
		       kcu.column_name,
		       ccu.table_schema,
		       ccu.table_name,
		       ccu.column_name,
		       tc.constraint_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
		  ON ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.column_name`

	relationships := []Relationship{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, schema)
		if err != nil {
			return catalogError(ctx, "relationships", err)
		}
		defer rows.Close()
		for rows.Next() {
			rel := Relationship{Type: "one-to-many"}
			if err := rows.Scan(&rel.From.Schema, &rel.From.Table, &rel.From.Column,
				&rel.To.Schema, &rel.To.Table, &rel.To.Column, &rel.ConstraintName); err != nil {
				return catalogError(ctx, "relationships", err)
			}
			relationships = append(relationships, rel)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "relationships", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return relationships, nil
}
