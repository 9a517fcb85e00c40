// internal/middleware/logging.go
//
// Per-request access log.
//
// One structured zap line per request with method, path, status, bytes,
// duration, and chi's request ID.  Mount it after chimw.RequestID so the
// ID is present.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLog writes one structured line per request.
func RequestLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"req_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
