// Package logging defines a minimal structured-logging interface used across
// the project, with slog and zap implementations behind it.
package logging

import (
	"context"
	"log"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "file stored", "file_id", id, "version", 1)
type Logger interface {
	// Debug logs verbose diagnostics.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// StdLogger returns a standard library logger that forwards to l at error
// level, or nil when l cannot provide one.
func StdLogger(l Logger) *log.Logger {
	if s, ok := l.(interface{ StdLogger() *log.Logger }); ok {
		return s.StdLogger()
	}
	return nil
}
