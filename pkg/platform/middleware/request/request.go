// Package request assigns a request ID and injects it into the context.
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"auctioneer/pkg/requestcontext"
)

const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID reuses a caller-supplied X-Request-ID when it is sane and mints
// one otherwise. The ID is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
