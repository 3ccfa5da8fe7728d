package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type principalKey struct{}

// KeyResolver resolves the name of the API key owning a bearer token.
type KeyResolver interface {
	ResolveKey(ctx context.Context, token string) (string, error)
}

// PrincipalFromContext returns the authenticated key name from context, if present.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// WithPrincipal returns a context carrying the authenticated key name.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, &APIError{Code: "UNAUTHORIZED", Message: "missing bearer token"})
				return
			}

			name, err := resolver.ResolveKey(r.Context(), token)
			if err != nil || name == "" {
				writeJSON(w, http.StatusUnauthorized, &APIError{Code: "UNAUTHORIZED", Message: "invalid bearer token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), name)))
		})
	}
}
