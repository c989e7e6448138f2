// Package gwerror defines the gateway's error taxonomy. Every error carries
// an HTTP status code and maps to a short machine-readable code for API
// responses.
package gwerror

import (
	"errors"
	"net/http"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
)

var (
	ErrGateway apperrors.Error = apperrors.New("gateway error").SetStatusCode(http.StatusInternalServerError)

	ErrValidation      apperrors.Error = ErrGateway.New("invalid definition").SetStatusCode(http.StatusBadRequest)
	ErrSyntax          apperrors.Error = ErrGateway.New("sql rejected by database").SetStatusCode(http.StatusBadRequest)
	ErrTenantNotFound  apperrors.Error = ErrGateway.New("tenant database not found").SetStatusCode(http.StatusNotFound)
	ErrPoolExhausted   apperrors.Error = ErrGateway.New("tenant connection pool exhausted").SetStatusCode(http.StatusServiceUnavailable)
	ErrTimeout         apperrors.Error = ErrGateway.New("query timed out").SetStatusCode(http.StatusGatewayTimeout)
	ErrProvisioning    apperrors.Error = ErrGateway.New("provisioning failed").SetStatusCode(http.StatusInternalServerError)
	ErrConflict        apperrors.Error = ErrGateway.New("conflicting operation in progress").SetStatusCode(http.StatusConflict)
	ErrStatementFailed apperrors.Error = ErrGateway.New("statement failed").SetStatusCode(http.StatusBadRequest)
)

// Code returns the machine-readable code for err, or "" when err is not part
// of the gateway taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrSyntax):
		return "syntax_error"
	case errors.Is(err, ErrTenantNotFound):
		return "tenant_not_found"
	case errors.Is(err, ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProvisioning):
		return "provisioning_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStatementFailed):
		return "statement_failed"
	case errors.Is(err, ErrGateway):
		return "internal_error"
	}
	return ""
}
