package middleware

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// SetSentryTenant tags the current Sentry scope with the request's tenant,
// so error events group per tenant without leaking the key into messages.
func SetSentryTenant(ctx context.Context, tenantKey string, source string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("tenant_key", tenantKey)
		scope.SetTag("tenant_source", source)
	})
}
