// Package sqlquote escapes SQL identifiers and string literals for generated
// DDL. Every identifier interpolated into a statement must go through Ident;
// every user-supplied string value must go through Literal unless the caller
// explicitly intends a raw SQL expression.
package sqlquote

import "strings"

// Ident wraps a SQL identifier in double quotes, doubling any embedded
// double quote.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedIdent quotes schema and name separately and joins them with a dot.
func QualifiedIdent(schema, name string) string {
	return Ident(schema) + "." + Ident(name)
}

// Literal wraps a string literal in single quotes, doubling any embedded
// single quote.
func Literal(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
