// Package ddl compiles structured schema and table definitions into ordered
// SQL statement sequences. Statements are returned as a slice, to be executed
// in order inside a single transaction by the execution gateway; the compiler
// itself never touches the database.
package ddl

import (
	"fmt"
	"strings"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/sqlquote"
)

// CompileCreateSchema compiles def into a CREATE SCHEMA statement plus an
// optional COMMENT ON SCHEMA.
func CompileCreateSchema(def *SchemaDefinition) ([]string, apperrors.Error) {
	if err := validate.Struct(def); err != nil {
		return nil, gwerror.ErrValidation.MsgErr("invalid schema definition", err)
	}

	stmt := "CREATE SCHEMA IF NOT EXISTS " + sqlquote.Ident(def.Name)
	if def.Owner != "" {
		stmt += " AUTHORIZATION " + sqlquote.Ident(def.Owner)
	}
	statements := []string{stmt + ";"}

	if def.Description != "" {
		statements = append(statements,
			"COMMENT ON SCHEMA "+sqlquote.Ident(def.Name)+" IS "+sqlquote.Literal(def.Description)+";")
	}
	return statements, nil
}

// CompileCreateTable compiles def into an ordered statement sequence:
// CREATE TABLE, COMMENT ON TABLE, COMMENT ON COLUMN per described column,
// and ALTER TABLE ... ENABLE ROW LEVEL SECURITY when requested.
func CompileCreateTable(def *TableDefinition) ([]string, apperrors.Error) {
	if err := validate.Struct(def); err != nil {
		return nil, gwerror.ErrValidation.MsgErr("invalid table definition", err)
	}
	if err := checkColumns(def.Columns); err != nil {
		return nil, err
	}

	qualified := sqlquote.QualifiedIdent(def.Schema, def.Name)

	clauses := make([]string, 0, len(def.Columns))
	for i := range def.Columns {
		clauses = append(clauses, columnClause(&def.Columns[i]))
	}

	statements := []string{
		"CREATE TABLE " + qualified + " (" + strings.Join(clauses, ",\n  ") + ");",
	}

	if def.Description != "" {
		statements = append(statements,
			"COMMENT ON TABLE "+qualified+" IS "+sqlquote.Literal(def.Description)+";")
	}
	for _, col := range def.Columns {
		if col.Description != "" {
			statements = append(statements,
				"COMMENT ON COLUMN "+qualified+"."+sqlquote.Ident(col.Name)+" IS "+sqlquote.Literal(col.Description)+";")
		}
	}
	if def.RowLevelSecurity {
		statements = append(statements,
			"ALTER TABLE "+qualified+" ENABLE ROW LEVEL SECURITY;")
	}
	return statements, nil
}

// CompileCreateIndex compiles def into a single CREATE INDEX statement.
func CompileCreateIndex(def *IndexDefinition) ([]string, apperrors.Error) {
	if err := validate.Struct(def); err != nil {
		return nil, gwerror.ErrValidation.MsgErr("invalid index definition", err)
	}

	cols := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		cols = append(cols, sqlquote.Ident(c))
	}
	unique := ""
	if def.Unique {
		unique = "UNIQUE "
	}
	stmt := "CREATE " + unique + "INDEX IF NOT EXISTS " + sqlquote.Ident(def.Name) +
		" ON " + sqlquote.QualifiedIdent(def.Schema, def.Table) +
		" (" + strings.Join(cols, ", ") + ");"
	return []string{stmt}, nil
}

// columnClause renders one column definition. The keyword order is fixed to
// match Postgres grammar expectations:
// name TYPE[(len|p,s)] [PRIMARY KEY] [NOT NULL] [UNIQUE] [DEFAULT v]
func columnClause(col *ColumnDefinition) string {
	var b strings.Builder
	b.WriteString(sqlquote.Ident(col.Name))
	b.WriteString(" ")
	b.WriteString(typeClause(col))

	if col.IsPrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !col.IsNullable && !col.IsPrimaryKey {
		b.WriteString(" NOT NULL")
	}
	// UNIQUE is implied by PRIMARY KEY
	if col.IsUnique && !col.IsPrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if col.DefaultValue != "" {
		b.WriteString(" DEFAULT ")
		if col.DefaultIsExpr {
			b.WriteString(col.DefaultValue)
		} else {
			b.WriteString(sqlquote.Literal(col.DefaultValue))
		}
	}
	return b.String()
}

func typeClause(col *ColumnDefinition) string {
	t := strings.ToUpper(col.Type)
	info := columnTypes[strings.ToLower(col.Type)]
	switch {
	case info.hasLength && col.MaxLength > 0:
		return fmt.Sprintf("%s(%d)", t, col.MaxLength)
	case info.hasPrecision && col.Precision > 0 && col.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", t, col.Precision, col.Scale)
	case info.hasPrecision && col.Precision > 0:
		return fmt.Sprintf("%s(%d)", t, col.Precision)
	}
	return t
}

// checkColumns enforces the structural invariants that validator tags cannot
// express: supported types, modifier applicability, and the single primary
// key rule.
func checkColumns(cols []ColumnDefinition) apperrors.Error {
	pkCount := 0
	for _, col := range cols {
		info, ok := columnTypes[strings.ToLower(col.Type)]
		if !ok {
			return gwerror.ErrValidation.New(fmt.Sprintf("unsupported column type: %s", col.Type))
		}
		if col.MaxLength > 0 && !info.hasLength {
			return gwerror.ErrValidation.New(fmt.Sprintf("max_length is not valid for type %s", col.Type))
		}
		if (col.Precision > 0 || col.Scale > 0) && !info.hasPrecision {
			return gwerror.ErrValidation.New(fmt.Sprintf("precision/scale is not valid for type %s", col.Type))
		}
		if col.Scale > 0 && col.Precision == 0 {
			return gwerror.ErrValidation.New(fmt.Sprintf("column %s: scale requires precision", col.Name))
		}
		if col.IsPrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return gwerror.ErrValidation.New("at most one column may be the primary key")
	}
	return nil
}
