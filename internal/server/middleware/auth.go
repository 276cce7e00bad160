// Package middleware provides HTTP middleware for authentication, logging,
// and request processing.
package middleware

import (
	"context"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const apiKeyMaskedContextKey contextKey = "api_key_masked"

// Auth returns an HTTP authentication middleware. When expectedKey is empty
// authentication is disabled; otherwise the request must carry a matching
// key via "Authorization: Bearer {key}" or the X-API-Key header.
func Auth(expectedKey string, logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if expectedKey == "" {
				return handler(ctx, req)
			}

			apiKey := extractAPIKey(ctx)
			if apiKey == "" {
				helper.Warnw("msg", "request rejected: missing API key")
				return nil, errors.Unauthorized("MISSING_API_KEY", "API key is required")
			}
			if apiKey != expectedKey {
				helper.Warnw("msg", "request rejected: invalid API key",
					"api_key_masked", maskAPIKey(apiKey),
				)
				return nil, errors.Unauthorized("INVALID_API_KEY", "API key is not valid")
			}

			ctx = context.WithValue(ctx, apiKeyMaskedContextKey, maskAPIKey(apiKey))
			return handler(ctx, req)
		}
	}
}

// extractAPIKey reads the key from the Authorization or X-API-Key header.
func extractAPIKey(ctx context.Context) string {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return ""
	}
	ht, ok := tr.(http.Transporter)
	if !ok {
		return ""
	}

	req := ht.Request()
	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return req.Header.Get("X-API-Key")
}

// maskAPIKey shows only the first 8 characters of a key.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "***"
}

// MaskedAPIKeyFromContext returns the masked key set by Auth, if any.
func MaskedAPIKeyFromContext(ctx context.Context) string {
	if masked, ok := ctx.Value(apiKeyMaskedContextKey).(string); ok {
		return masked
	}
	return ""
}
