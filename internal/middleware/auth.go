// Package middleware provides HTTP middleware for Sprintium.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"sprintium/internal/auth"
	"sprintium/internal/metrics"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// IdentityContextKey is the context key for storing the acting identity.
const IdentityContextKey contextKey = "identity"

// IdentityResolver turns a bearer token into the acting identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Identity, error)
}

// GetIdentity retrieves the authenticated identity from the request context.
// Returns the Identity and true if found, nil and false otherwise.
func GetIdentity(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*auth.Identity)
	return identity, ok
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// RequireAuth returns middleware that authenticates requests with the provided resolver.
// It extracts the bearer token, resolves it, and attaches the identity to the request.
//
// Error responses:
//   - 401 Unauthorized: missing, malformed, expired, foreign or revoked token
//   - 500 Internal Server Error: revocation store or other server error
func RequireAuth(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearerToken(r)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
				auth.WriteUnauthorized(w)
				return
			}

			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
					auth.WriteUnauthorized(w)
					return
				}
				slog.ErrorContext(r.Context(), "failed to resolve identity", "error", err)
				auth.WriteInternalError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
