// Package middleware provides HTTP middleware for the validation server.
// Logger writes the access log; TrustedRealIP and APIKeyAuth run ahead of
// the API routes.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/hsds-validator/internal/logging"
)

// Logger logs one line per request with status, size and timing. Server
// errors are logged at warn level so they stand out from normal traffic.
//
// Log fields: method, path, status, bytes, duration_ms, ip, user_agent,
// plus request_id when chi's RequestID middleware ran first.
//
// Mount it after RequestID and RealIP so the line carries the request id and
// the resolved client address rather than the proxy's:
//
//	r.Use(chimw.RequestID)
//	r.Use(middleware.TrustedRealIP(cfg.Security.TrustedProxies))
//	r.Use(middleware.Logger)
//
// Handlers that fail log their own error with the same request id; this line
// only records the outcome.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logging.FromContext(r.Context()).Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter records the status code and body size. Only the first
// WriteHeader counts; a Write without one implies 200.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
