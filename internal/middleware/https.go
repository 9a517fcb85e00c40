// Package middleware holds small, composable HTTP wrappers used by the
// view transport.
package middleware

import (
	"net"
	"net/http"
)

// ForceHTTPS wraps h.  A plain-HTTP request for a non-loopback host gets a
// 308 Permanent Redirect to the HTTPS version of the same URL; everything
// else reaches h unchanged.  Operator panels on localhost keep working
// without certificates.
func ForceHTTPS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" || isLoopback(r.Host) {
			h.ServeHTTP(w, r)
			return
		}
		target := "https://" + r.Host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})
}

// isLoopback reports whether host (with or without port) is local.
func isLoopback(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
