// Package logging defines a minimal structured-logging interface used across
// the project. Implementations can wrap slog, zap, zerolog, etc. Components
// must keep working (silently degraded) when handed the discard logger.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "sweep finished", "tenant", slug, "cleared", n)
type Logger interface {
	// Debug logs fine-grained diagnostic messages.
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

// discard is a Logger that drops everything.
type discard struct{}

func (discard) Debug(context.Context, string, ...any) {}
func (discard) Info(context.Context, string, ...any)  {}
func (discard) Warn(context.Context, string, ...any)  {}
func (discard) Error(context.Context, string, ...any) {}
func (d discard) With(...any) Logger                  { return d }

// NewDiscard returns a no-op Logger.
func NewDiscard() Logger { return discard{} }
