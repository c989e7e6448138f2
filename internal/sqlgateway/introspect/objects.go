package introspect

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/pkg/types"
)

type FunctionInfo struct {
	Name              string `json:"name"`
	Schema            string `json:"schema"`
	Language          string `json:"language"`
	ReturnType        string `json:"return_type"`
	Arguments         string `json:"arguments"`
	Definition        string `json:"definition,omitempty"`
	IsSecurityDefiner bool   `json:"is_security_definer"`
	Volatility        string `json:"volatility"`
	Description       string `json:"description,omitempty"`
}

type IndexInfo struct {
	Name        string   `json:"name"`
	TableSchema string   `json:"table_schema"`
	TableName   string   `json:"table_name"`
	IndexType   string   `json:"index_type"`
	Columns     []string `json:"columns"`
	IsUnique    bool     `json:"is_unique"`
	IsPrimary   bool     `json:"is_primary"`
	Size        string   `json:"size"`
}

type TriggerInfo struct {
	Name         string `json:"name"`
	TableSchema  string `json:"table_schema"`
	TableName    string `json:"table_name"`
	Event        string `json:"event"`
	Timing       string `json:"timing"`
	FunctionName string `json:"function_name"`
	Enabled      bool   `json:"enabled"`
}

type PublicationInfo struct {
	Name            string   `json:"name"`
	Owner           string   `json:"owner"`
	Tables          []string `json:"tables"`
	AllTables       bool     `json:"all_tables"`
	PublishInsert   bool     `json:"publish_insert"`
	PublishUpdate   bool     `json:"publish_update"`
	PublishDelete   bool     `json:"publish_delete"`
	PublishTruncate bool     `json:"publish_truncate"`
}

type ExtensionInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Schema      string `json:"schema,omitempty"`
	Installed   bool   `json:"installed"`
	Description string `json:"description,omitempty"`
}

// ListFunctions returns the user-defined functions of one schema.
// Definitions are included for sql and plpgsql functions only.
func (s *Service) ListFunctions(ctx context.Context, tenantID types.TenantId, schema string) ([]FunctionInfo, apperrors.Error) {
	query := `
		SELECT p.proname,
		       n.nspname,
		       l.lanname,
		       pg_get_function_result(p.oid),
		       pg_get_function_arguments(p.oid),
		       CASE WHEN l.lanname IN ('sql', 'plpgsql') THEN pg_get_functiondef(p.oid) ELSE '' END,
		       p.prosecdef,
		       CASE p.provolatile WHEN 'i' THEN 'immutable' WHEN 's' THEN 'stable' ELSE 'volatile' END,
		       COALESCE(obj_description(p.oid, 'pg_proc'), '')
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1
		  AND p.prokind = 'f'
		ORDER BY p.proname`

	functions := []FunctionInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, schema)
		if err != nil {
			return catalogError(ctx, "functions", err)
		}
		defer rows.Close()
		for rows.Next() {
			var fi FunctionInfo
			if err := rows.Scan(&fi.Name, &fi.Schema, &fi.Language, &fi.ReturnType,
				&fi.Arguments, &fi.Definition, &fi.IsSecurityDefiner,
				&fi.Volatility, &fi.Description); err != nil {
				return catalogError(ctx, "functions", err)
			}
			functions = append(functions, fi)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "functions", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return functions, nil
}

// ListIndexes returns the indexes of one schema with access method, column
// set and on-disk size.
func (s *Service) ListIndexes(ctx context.Context, tenantID types.TenantId, schema string) ([]IndexInfo, apperrors.Error) {
	query := `
		SELECT c.relname,
		       n.nspname,
		       t.relname,
		       am.amname,
		       (SELECT array_agg(a.attname ORDER BY k.ord)
		        FROM unnest(idx.indkey) WITH ORDINALITY k(attnum, ord)
		        JOIN pg_attribute a ON a.attrelid = idx.indrelid AND a.attnum = k.attnum),
		       idx.indisunique,
		       idx.indisprimary,
		       pg_size_pretty(pg_relation_size(c.oid))
		FROM pg_index idx
		JOIN pg_class c ON c.oid = idx.indexrelid
		JOIN pg_class t ON t.oid = idx.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_am am ON am.oid = c.relam
		WHERE n.nspname = $1
		ORDER BY t.relname, c.relname`

	indexes := []IndexInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, schema)
		if err != nil {
			return catalogError(ctx, "indexes", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ii IndexInfo
			if err := rows.Scan(&ii.Name, &ii.TableSchema, &ii.TableName, &ii.IndexType,
				pq.Array(&ii.Columns), &ii.IsUnique, &ii.IsPrimary, &ii.Size); err != nil {
				return catalogError(ctx, "indexes", err)
			}
			indexes = append(indexes, ii)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "indexes", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return indexes, nil
}

// ListTriggers returns the user triggers of one schema. Event and timing are
// decoded from the tgtype bitmask.
func (s *Service) ListTriggers(ctx context.Context, tenantID types.TenantId, schema string) ([]TriggerInfo, apperrors.Error) {
	query := `
		SELECT t.tgname,
		       n.nspname,
		       c.relname,
		       concat_ws(' OR ',
		           CASE WHEN t.tgtype & 4 <> 0 THEN 'INSERT' END,
		           CASE WHEN t.tgtype & 8 <> 0 THEN 'DELETE' END,
		           CASE WHEN t.tgtype & 16 <> 0 THEN 'UPDATE' END,
		           CASE WHEN t.tgtype & 32 <> 0 THEN 'TRUNCATE' END),
		       CASE WHEN t.tgtype & 2 <> 0 THEN 'BEFORE'
		            WHEN t.tgtype & 64 <> 0 THEN 'INSTEAD OF'
		            ELSE 'AFTER' END,
		       p.proname,
		       t.tgenabled <> 'D'
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_proc p ON p.oid = t.tgfoid
		WHERE NOT t.tgisinternal
		  AND n.nspname = $1
		ORDER BY c.relname, t.tgname`

	triggers := []TriggerInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, schema)
		if err != nil {
			return catalogError(ctx, "triggers", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ti TriggerInfo
			if err := rows.Scan(&ti.Name, &ti.TableSchema, &ti.TableName,
				&ti.Event, &ti.Timing, &ti.FunctionName, &ti.Enabled); err != nil {
				return catalogError(ctx, "triggers", err)
			}
			triggers = append(triggers, ti)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "triggers", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

// ListPublications returns the logical replication publications of the
// tenant database.
func (s *Service) ListPublications(ctx context.Context, tenantID types.TenantId) ([]PublicationInfo, apperrors.Error) {
	query := `
		SELECT p.pubname,
		       r.rolname,
		       COALESCE((SELECT array_agg(pt.schemaname || '.' || pt.tablename ORDER BY pt.schemaname, pt.tablename)
		                 FROM pg_publication_tables pt
		                 WHERE pt.pubname = p.pubname), ARRAY[]::text[]),
		       p.puballtables,
		       p.pubinsert,
		       p.pubupdate,
		       p.pubdelete,
		       p.pubtruncate
		FROM pg_publication p
		JOIN pg_roles r ON r.oid = p.pubowner
		ORDER BY p.pubname`

	publications := []PublicationInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return catalogError(ctx, "publications", err)
		}
		defer rows.Close()
		for rows.Next() {
			var pi PublicationInfo
			if err := rows.Scan(&pi.Name, &pi.Owner, pq.Array(&pi.Tables),
				&pi.AllTables, &pi.PublishInsert, &pi.PublishUpdate,
				&pi.PublishDelete, &pi.PublishTruncate); err != nil {
				return catalogError(ctx, "publications", err)
			}
			publications = append(publications, pi)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "publications", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return publications, nil
}

// ListExtensions returns available extensions with their installed state.
func (s *Service) ListExtensions(ctx context.Context, tenantID types.TenantId) ([]ExtensionInfo, apperrors.Error) {
	query := `
		SELECT a.name,
		       COALESCE(i.extversion, a.default_version),
		       COALESCE(n.nspname, ''),
		       i.extname IS NOT NULL,
		       COALESCE(a.comment, '')
		FROM pg_available_extensions a
		LEFT JOIN pg_extension i ON i.extname = a.name
		LEFT JOIN pg_namespace n ON n.oid = i.extnamespace
		ORDER BY a.name`

	extensions := []ExtensionInfo{}
	err := s.withConn(ctx, tenantID, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return catalogError(ctx, "extensions", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ei ExtensionInfo
			if err := rows.Scan(&ei.Name, &ei.Version, &ei.Schema,
				&ei.Installed, &ei.Description); err != nil {
				return catalogError(ctx, "extensions", err)
			}
			extensions = append(extensions, ei)
		}
		if err := rows.Err(); err != nil {
			return catalogError(ctx, "extensions", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extensions, nil
}
