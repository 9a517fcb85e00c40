// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects standard headers on every response:
//
//   • Content-Security-Policy   –  self-only, plus the inline scene script
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Referrer-Policy           –  drops path/query from Referer
//   • Permissions-Policy        –  disables powerful features by default
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP; a handler may still override
//   them, and the websocket upgrade is unaffected.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		csp = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline'; connect-src 'self'; " +
			"object-src 'none'; base-uri 'self'; frame-ancestors 'none'"
		xfo   = "DENY"
		nosn  = "nosniff"
		refer = "strict-origin-when-cross-origin"
		perm  = "geolocation=(), microphone=(), camera=()"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Frame-Options", xfo)
		h.Set("X-Content-Type-Options", nosn)
		h.Set("Referrer-Policy", refer)
		h.Set("Permissions-Policy", perm)
		next.ServeHTTP(w, r)
	})
}
