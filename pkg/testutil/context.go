// Package testutil builds requests the way the middleware chain would.
package testutil

import (
	"net/http"
	"time"

	id "auctioneer/pkg/domain"
	"auctioneer/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, the way the identity
// middleware does for authenticated requests. Invalid UUIDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
