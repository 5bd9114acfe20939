package elkan

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with clustering-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithK adds a k (cluster count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInit logs the initial assignment.
func (l *Logger) LogInit(ctx context.Context, n, k, dimension int, computations int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "initialization failed",
			"n", n,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "initialization completed",
			"n", n,
			"k", k,
			"dimension", dimension,
			"computations", computations,
		)
	}
}

// LogIteration logs one completed iteration.
func (l *Logger) LogIteration(ctx context.Context, iteration, changes, reseeds int, computations int64, maxMovement float64) {
	l.DebugContext(ctx, "iteration completed",
		"iteration", iteration,
		"changes", changes,
		"reseeds", reseeds,
		"computations", computations,
		"max_movement", maxMovement,
	)
}

// LogRun logs the outcome of a clustering run.
func (l *Logger) LogRun(ctx context.Context, iterations int, converged bool, computations int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clustering failed",
			"iterations", iterations,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "clustering completed",
			"iterations", iterations,
			"converged", converged,
			"computations", computations,
			"duration", duration,
		)
	}
}
