package middleware

import (
	"context"
	"fmt"
)

// contextKey is a private type so our context values cannot collide with
// other packages'.
type contextKey string

// TenantKeyKey carries the validated, lower-cased tenant key of the request.
const TenantKeyKey contextKey = "tenant_key"

// GetTenantKey extracts the tenant key from the context.
func GetTenantKey(ctx context.Context) (string, error) {
	val := ctx.Value(TenantKeyKey)
	if val == nil {
		return "", fmt.Errorf("tenant_key not found in context")
	}
	key, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("tenant_key has wrong type: %T", val)
	}
	return key, nil
}

// MustGetTenantKey extracts the tenant key and panics if it is absent. Use
// only under routes guarded by TenantAuth, which always sets it.
func MustGetTenantKey(ctx context.Context) string {
	key, err := GetTenantKey(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return key
}
