package trove

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific context.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSpace adds a feature space field to the logger.
func (l *Logger) WithSpace(space FeatureSpace) *Logger {
	return &Logger{
		Logger: l.Logger.With("space", space.String()),
	}
}

// LogAppend logs an append operation.
func (l *Logger) LogAppend(ctx context.Context, space FeatureSpace, first uint64, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"space", space.String(),
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "append completed",
			"space", space.String(),
			"first_ordinal", first,
			"count", count,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, space FeatureSpace, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"space", space.String(),
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"space", space.String(),
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogPersist logs a persistence operation.
func (l *Logger) LogPersist(ctx context.Context, space FeatureSpace, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "persist failed",
			"space", space.String(),
			"filename", filename,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "persist completed",
			"space", space.String(),
			"filename", filename,
		)
	}
}

// LogOpen logs a store open, one line per space.
func (l *Logger) LogOpen(ctx context.Context, space FeatureSpace, count uint64) {
	l.InfoContext(ctx, "space loaded",
		"space", space.String(),
		"count", count,
		"dimension", space.Dimension(),
	)
}
