package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/token"
	"github.com/ourway/auth/internal/validate"
)

// TokenValidator verifies service JWTs. Satisfied by *token.Issuer.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// TenantAuth authenticates every request on the /api subtree. The bearer
// credential is either the raw tenant key or a service JWT whose subject is
// the tenant key; either way the key must have the canonical UUIDv4 shape.
//
// A missing or malformed Authorization header is 401; a present credential
// that fails the key-shape check is 400. The validated key is lower-cased
// into the request context and tagged on the Sentry scope.
func TenantAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				helpers.RespondError(w, http.StatusUnauthorized, "Authorization header required", nil)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) || len(header) == len(prefix) {
				helpers.RespondError(w, http.StatusUnauthorized, "Authorization header must be Bearer <token>", nil)
				return
			}
			credential := strings.TrimSpace(header[len(prefix):])

			key := credential
			source := "bearer-key"
			if strings.Count(credential, ".") == 2 {
				// Compact JWT shape; treat it as a service token.
				claims, err := validator.Validate(credential)
				if err != nil {
					slog.Warn("service_token_rejected", "error", err, "ip", r.RemoteAddr)
					status := http.StatusUnauthorized
					message := "invalid service token"
					if errors.Is(err, token.ErrExpiredToken) {
						message = "service token has expired"
					}
					helpers.RespondError(w, status, message, nil)
					return
				}
				key = claims.Subject
				source = "service-token"
			}

			normalized, err := validate.TenantKey(key)
			if err != nil {
				slog.Warn("tenant_key_rejected", "ip", r.RemoteAddr)
				helpers.RespondError(w, http.StatusBadRequest, "tenant key must be a UUID", nil)
				return
			}

			ctx := context.WithValue(r.Context(), TenantKeyKey, normalized)
			SetSentryTenant(ctx, normalized, source)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
