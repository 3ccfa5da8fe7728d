package mcp

import (
	"context"
	"fmt"

	"github.com/ganot/perfscan/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const localPrincipal = "local"

// KeyResolver resolves the name of the API key owning a bearer token.
type KeyResolver = transport.KeyResolver

// principal extracts the authenticated key name from context.
func principal(ctx context.Context) string {
	v, _ := transport.PrincipalFromContext(ctx)
	return v
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver KeyResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Protocol handshake carries no credentials over some clients.
			if method == "initialize" || method == "ping" || method == "notifications/initialized" {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", transport.ErrUnauthorized)
			}

			token := transport.BearerToken(extra.Header.Get("Authorization"))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", transport.ErrUnauthorized)
			}

			name, err := resolver.ResolveKey(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", transport.ErrUnauthorized, err)
			}
			if name == "" {
				return nil, fmt.Errorf("%w: invalid bearer token", transport.ErrUnauthorized)
			}

			return next(transport.WithPrincipal(ctx, name), method, req)
		}
	}
}

// noAuthMiddleware injects a fixed principal when auth is disabled.
func noAuthMiddleware(name string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(transport.WithPrincipal(ctx, name), method, req)
		}
	}
}
