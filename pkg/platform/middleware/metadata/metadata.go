// Package metadata records where a request came from, for bid audit logs.
package metadata

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Client is what the edge knows about the caller.
type Client struct {
	IP        string
	UserAgent string
}

// LogValue keeps both fields under one "client" group in structured logs.
func (c Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ip", c.IP),
		slog.String("user_agent", c.UserAgent),
	)
}

type clientKey struct{}

// ClientMetadata stores the caller's Client in the request context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Client{IP: ClientIPFromRequest(r), UserAgent: r.Header.Get("User-Agent")}
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), c)))
	})
}

// FromContext returns the zero Client outside an HTTP request.
func FromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the socket address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
