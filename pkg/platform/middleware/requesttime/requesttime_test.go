package requesttime_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"auctioneer/pkg/platform/middleware/requesttime"
	"auctioneer/pkg/requestcontext"
	"auctioneer/pkg/testutil"
)

func capture(got *[]time.Time) http.Handler {
	return http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		*got = append(*got, requestcontext.Now(r.Context()), requestcontext.Now(r.Context()))
	})
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 7, 1, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	var got []time.Time
	h := requesttime.WithClock(func() time.Time { return fixed })(capture(&got))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, got, 2)
	assert.True(t, got[0].Equal(fixed))
	assert.Equal(t, time.UTC, got[0].Location())
	assert.Equal(t, got[0], got[1], "one request sees one instant")
}

func TestPinnedTimeWins(t *testing.T) {
	pinned := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	var got []time.Time
	h := requesttime.Middleware(capture(&got))

	req := testutil.WithTime(httptest.NewRequest(http.MethodGet, "/", nil), pinned)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, pinned, got[0])
}
