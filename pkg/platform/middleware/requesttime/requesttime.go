// Package requesttime pins one "now" per HTTP request, so a bid's created_at
// and the auction end-time check inside the same request agree.
package requesttime

import (
	"net/http"
	"time"

	"auctioneer/pkg/requestcontext"
)

// Middleware stamps each request with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps requests with now(). A request that already carries a time
// keeps it, so tests can pin the clock upstream.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, pinned := requestcontext.Time(ctx); !pinned {
				ctx = requestcontext.WithTime(ctx, now().UTC())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
