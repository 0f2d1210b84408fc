// Package requestcontext carries request-scoped values from middleware to
// services without importing net/http:
//
//	bidder := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Background passes pin one instant per batch with WithTime.
package requestcontext

import (
	"context"
	"time"

	id "auctioneer/pkg/domain"
)

type (
	userKey      struct{}
	requestIDKey struct{}
	clockKey     struct{}
)

// UserID is the acting user, or the nil ID outside an authenticated request.
func UserID(ctx context.Context) id.UserID {
	userID, _ := ctx.Value(userKey{}).(id.UserID)
	return userID
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// RequestID is the correlation ID echoed in X-Request-ID.
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	return reqID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Time returns the pinned instant, if one was set.
func Time(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(clockKey{}).(time.Time)
	return t, ok
}

// Now is the pinned instant, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := Time(ctx); ok {
		return t
	}
	return time.Now()
}

// WithTime pins "now" for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, clockKey{}, t)
}
