package web

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/JonMunkholm/repairdesk/internal/logging"
)

// clientIP returns the client address without its port. TrustedRealIP has
// already replaced RemoteAddr when the request came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestLogger returns a logger carrying the request id and client address.
func requestLogger(r *http.Request) *slog.Logger {
	return logging.WithFields(r.Context(), "ip", clientIP(r))
}
