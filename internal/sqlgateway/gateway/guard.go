package gateway

import (
	"strings"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
)

// dangerousFragments are rejected before any statement reaches a tenant
// database. The workbench runs with the tenant's own role, so this is a
// guard against accidents, not a security boundary; real isolation comes
// from per-tenant roles and databases.
var dangerousFragments = []string{
	"drop database",
	"drop schema",
	"truncate",
	"delete from pg_",
	"update pg_",
	"alter system",
}

func checkDangerous(stmt string) apperrors.Error {
	lowered := strings.ToLower(stmt)
	for _, fragment := range dangerousFragments {
		if strings.Contains(lowered, fragment) {
			return gwerror.ErrValidation.Msg(`statement rejected: contains "` + strings.ToUpper(fragment) + `"`)
		}
	}
	return nil
}
