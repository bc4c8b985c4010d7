package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/hsds-validator/internal/core"
)

// WithRequestMetadata adds client IP and User-Agent to ctx for run history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP is RemoteAddr without the port. TrustedRealIP has already
// replaced it for proxied requests.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
