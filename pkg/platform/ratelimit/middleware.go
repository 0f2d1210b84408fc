package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/httputil"
	"auctioneer/pkg/requestcontext"
)

// Middleware limits requests per acting user. It must run after the identity
// middleware.
type Middleware struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewMiddleware(store Store, limit int, window time.Duration, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, limit: limit, window: window, logger: logger}
}

// PerUser throttles under scope (e.g. "bids"). A disabled limiter (limit <= 0)
// passes everything through; store errors fail open.
func (m *Middleware) PerUser(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)

			result, err := m.store.Allow(ctx, scope+":"+userID.String(), m.limit, m.window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit", "scope", scope, "user_id", userID, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"user_id", userID,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
