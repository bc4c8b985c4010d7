// Package logging configures log/slog for the server and the CLI.
//
// The package integrates with chi's RequestID middleware: loggers taken from
// a request context carry request_id, so the access log line, the service's
// run entries and any validator debug output for one request can be joined.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// New builds a logger writing to w without touching the slog default.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// The CLI uses New to send diagnostics to stderr while stdout carries the
// report. Tests use it with a bytes.Buffer to assert on log output.
//
// Usage:
//
//	logger := logging.New(os.Stderr, "debug", "text")
//	v, err := validator.New(catalog, resources.Service, validator.WithLogger(logger))
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs a stdout logger as the slog default and returns it.
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
//
// Setup should run once, before the catalog, service and server are built,
// since those capture slog.Default() when they are constructed.
//
// Usage:
//
//	cfg, err := config.Load()
//	...
//	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
//	svc := core.NewService(catalog, core.WithLogger(logger))
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, enriched with request context.
//
// When ctx went through chi's RequestID middleware the returned logger adds
// request_id to every entry. Otherwise it is slog.Default() unchanged, so
// callers outside a request (startup, the schema watcher) can use it too.
//
// Usage:
//
//	func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("validating", "type", resourceType)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	// chi's RequestID middleware stores the id in the context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a request logger with extra fields attached.
//
// Use it for a logger that follows one validation run through several steps,
// so each entry repeats the run id and resource type without restating them.
//
// Usage:
//
//	runLogger := logging.WithFields(ctx,
//	    "run_id", run.ID,
//	    "type", run.ResourceType,
//	)
//	runLogger.Info("validation started")
//	// ... later ...
//	runLogger.Info("validation finished", "errors", run.ErrorCount)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
