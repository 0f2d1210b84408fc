// Package httpserver builds the process's *http.Server.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New returns a server with bounded read, write and idle times. Errors the
// server logs itself (TLS handshakes, panics in handlers) go to logger.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelError)
	}
	return srv
}
