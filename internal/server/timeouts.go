// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
//   • ReadHeaderTimeout – abort slow-loris headers (10 s)
//   • ReadTimeout       – cap request body reads (15 s)
//   • WriteTimeout      – cap total response time (30 s); popup waits are
//                         clamped below it
//   • IdleTimeout       – close keep-alives on idle clients (60 s)
//
// Websocket connections are hijacked and manage their own deadlines.

package server

import (
	"net/http"
	"time"
)

// WriteTimeout is the server-wide response deadline.
const WriteTimeout = 30 * time.Second

// NewHTTP constructs an *http.Server with sensible defaults.
func NewHTTP(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
