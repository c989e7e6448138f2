// Package gwcommon provides context management utilities shared by the
// gateway's HTTP handlers and services.
package gwcommon

import (
	"context"

	"github.com/nexusdb/sqlgateway/pkg/types"
)

// ctxKeyType represents the type for all context keys
type ctxKeyType string

const (
	ctxTenantIdKey ctxKeyType = "GatewayTenantId"
	ctxAppIdKey    ctxKeyType = "GatewayAppId"
)

// SetTenantIdInContext sets the tenant ID in the provided context.
func SetTenantIdInContext(ctx context.Context, tenantId types.TenantId) context.Context {
	return context.WithValue(ctx, ctxTenantIdKey, tenantId)
}

// TenantIdFromContext retrieves the tenant ID from the provided context.
func TenantIdFromContext(ctx context.Context) types.TenantId {
	if tenantId, ok := ctx.Value(ctxTenantIdKey).(types.TenantId); ok {
		return tenantId
	}
	return ""
}

// SetAppIdInContext sets the application ID in the provided context.
func SetAppIdInContext(ctx context.Context, appId types.AppId) context.Context {
	return context.WithValue(ctx, ctxAppIdKey, appId)
}

// AppIdFromContext retrieves the application ID from the provided context.
func AppIdFromContext(ctx context.Context) types.AppId {
	if appId, ok := ctx.Value(ctxAppIdKey).(types.AppId); ok {
		return appId
	}
	return ""
}
