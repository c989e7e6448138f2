package ddl

import (
	"github.com/go-playground/validator/v10"
)

// SchemaDefinition describes a schema to be created in a tenant database.
type SchemaDefinition struct {
	Name        string `json:"name" validate:"required"`
	Owner       string `json:"owner,omitempty"`
	Description string `json:"description,omitempty"`
}

// TableDefinition describes a table to be created in a tenant database.
type TableDefinition struct {
	Schema           string             `json:"schema" validate:"required"`
	Name             string             `json:"name" validate:"required"`
	Description      string             `json:"description,omitempty"`
	Columns          []ColumnDefinition `json:"columns" validate:"required,min=1,dive"`
	RowLevelSecurity bool               `json:"row_level_security,omitempty"`
	Realtime         bool               `json:"realtime,omitempty"`
}

// ColumnDefinition describes one column of a table.
//
// DefaultValue is treated as a string literal unless DefaultIsExpr is set, in
// which case it is passed through as a raw SQL expression (now(),
// gen_random_uuid(), numeric constants). Callers must mark the distinction;
// the compiler never guesses from the column type.
type ColumnDefinition struct {
	Name          string `json:"name" validate:"required"`
	Type          string `json:"type" validate:"required"`
	MaxLength     int    `json:"max_length,omitempty"`
	Precision     int    `json:"precision,omitempty"`
	Scale         int    `json:"scale,omitempty"`
	IsPrimaryKey  bool   `json:"is_primary_key,omitempty"`
	IsNullable    bool   `json:"is_nullable"`
	IsUnique      bool   `json:"is_unique,omitempty"`
	DefaultValue  string `json:"default_value,omitempty"`
	DefaultIsExpr bool   `json:"default_is_expr,omitempty"`
	Description   string `json:"description,omitempty"`
}

// IndexDefinition describes a plain btree index, used by the starter schema
// and the provisioning schema generator.
type IndexDefinition struct {
	Schema  string   `json:"schema" validate:"required"`
	Table   string   `json:"table" validate:"required"`
	Name    string   `json:"name" validate:"required"`
	Columns []string `json:"columns" validate:"required,min=1"`
	Unique  bool     `json:"unique,omitempty"`
}

// columnTypes is the fixed set of supported column types, keyed by the
// lowercase type name the workbench sends. The flags mark which length
// modifiers are meaningful for the type.
var columnTypes = map[string]struct {
	hasLength    bool
	hasPrecision bool
}{
	"varchar":          {hasLength: true},
	"char":             {hasLength: true},
	"text":             {},
	"integer":          {},
	"bigint":           {},
	"smallint":         {},
	"serial":           {},
	"bigserial":        {},
	"numeric":          {hasPrecision: true},
	"decimal":          {hasPrecision: true},
	"real":             {},
	"double precision": {},
	"timestamp":        {},
	"timestamptz":      {},
	"date":             {},
	"time":             {},
	"timetz":           {},
	"boolean":          {},
	"json":             {},
	"jsonb":            {},
	"uuid":             {},
	"text[]":           {},
	"integer[]":        {},
}

var validate = validator.New(validator.WithRequiredStructEnabled())
