package gwcommon

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// dbNameAlphabet keeps generated names valid Postgres identifiers without
// quoting: lowercase alphanumerics only.
const dbNameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewDatabaseSuffix returns a short random suffix for generated tenant
// database names. Collisions are caught by the unique constraint on
// tenant_databases, so the caller retries on conflict.
func NewDatabaseSuffix() string {
	id, err := gonanoid.Generate(dbNameAlphabet, 12)
	if err != nil {
		return ""
	}
	return id
}

// NewEntryId returns an identifier for history entries and saved queries.
func NewEntryId() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return id
}
