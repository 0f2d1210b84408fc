// Package identity resolves the acting user for a request.
//
// Authentication happens upstream (gateway); this service trusts the
// X-User-ID header it forwards and only checks it is a well-formed user ID.
package identity

import (
	"log/slog"
	"net/http"

	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/httputil"
	"auctioneer/pkg/requestcontext"
)

const HeaderUserID = "X-User-ID"

// RequireUser rejects requests without a valid X-User-ID.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := r.Header.Get(HeaderUserID)
			if raw == "" {
				logger.WarnContext(ctx, "unauthorized access - missing user",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing "+HeaderUserID+" header"))
				return
			}
			userID, err := id.ParseUserID(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed user",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid "+HeaderUserID+" header"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}
