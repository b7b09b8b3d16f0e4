package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
)

type contextKey string

const clientIPKey contextKey = "client_ip"

// GetClientIP returns the client identity resolved by the Identity
// middleware, or "" when it did not run.
func GetClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// APIKey validates the configured API key header with a constant-time
// comparison of SHA-256 digests.
func APIKey(headerName, key string) func(ctx huma.Context, next func(huma.Context)) {
	want := sha256.Sum256([]byte(key))

	return func(ctx huma.Context, next func(huma.Context)) {
		provided := ctx.Header(headerName)
		if provided == "" {
			writeError(ctx, http.StatusUnauthorized, "API key required")
			return
		}

		got := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			writeError(ctx, http.StatusForbidden, "invalid API key")
			return
		}

		next(ctx)
	}
}

// Identity resolves the submitting client's identity (IP, honoring proxy
// headers) and stores it on the request context.
func Identity() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ip := clientIP(ctx)
		echoCtx := humaecho.Unwrap(ctx)
		r := echoCtx.Request()
		echoCtx.SetRequest(r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
		next(ctx)
	}
}

func clientIP(ctx huma.Context) string {
	if fwd := ctx.Header("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if real := ctx.Header("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	return humaecho.Unwrap(ctx).RealIP()
}

func writeError(ctx huma.Context, status int, msg string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(status)
	json.NewEncoder(ctx.BodyWriter()).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
