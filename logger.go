package silo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with silo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to w.
// If w is nil, logs go to stderr.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to w.
// If w is nil, logs go to stderr.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithRequestID adds a request id field to the logger.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("requestId", id),
	}
}

// WithDataVersion adds a data version field to the logger.
func (l *Logger) WithDataVersion(version string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataVersion", version),
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, action, dataVersion string, rows int, duration time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "query failed",
			"action", action,
			"dataVersion", dataVersion,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"action", action,
			"dataVersion", dataVersion,
			"rows", rows,
			"duration", duration,
		)
	}
}

// LogSnapshotLoad logs loading a snapshot directory.
func (l *Logger) LogSnapshotLoad(ctx context.Context, dir string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot load failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"dir", dir,
			"duration", duration,
		)
	}
}

// LogSnapshotSwap logs the replacement of the active snapshot.
func (l *Logger) LogSnapshotSwap(ctx context.Context, from, to string, partitions int) {
	l.InfoContext(ctx, "snapshot swapped",
		"from", from,
		"to", to,
		"partitions", partitions,
	)
}
