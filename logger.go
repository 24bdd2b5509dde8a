package vecbench

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vecbench-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// WithFamily adds a family field to the logger.
func (l *Logger) WithFamily(family string) *Logger {
	return &Logger{
		Logger: l.Logger.With("family", family),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(family string, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("build failed",
			"family", family,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.Debug("build completed",
			"family", family,
			"elapsed", elapsed,
		)
	}
}

// LogSearch logs one timed search.
func (l *Logger) LogSearch(family string, k int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("search failed",
			"family", family,
			"k", k,
			"error", err,
		)
	} else {
		l.Debug("search completed",
			"family", family,
			"k", k,
			"elapsed", elapsed,
		)
	}
}

// LogPersist logs an artifact write.
func (l *Logger) LogPersist(family string, bytes int64, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("persist failed",
			"family", family,
			"error", err,
		)
	} else {
		l.Debug("artifact persisted",
			"family", family,
			"bytes", bytes,
			"elapsed", elapsed,
		)
	}
}

// LogRestore logs an index reload.
func (l *Logger) LogRestore(family string, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("restore failed",
			"family", family,
			"error", err,
		)
	} else {
		l.Debug("restore completed",
			"family", family,
			"elapsed", elapsed,
		)
	}
}

// LogRun logs the outcome of a whole sweep.
func (l *Logger) LogRun(ctx context.Context, plans int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sweep finished with failures",
			"plans", plans,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "sweep completed",
			"plans", plans,
			"elapsed", elapsed,
		)
	}
}
