package distvec

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with distvec-specific context.
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

// WithRank adds the worker rank and group size.
func (l *Logger) WithRank(rank, size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank, "workers", size),
	}
}

// WithOp adds an operation name.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", op),
	}
}

// LogInit logs a completed or failed initialization.
func (l *Logger) LogInit(ctx context.Context, global, local, first int, ptype ParallelType, err error) {
	if err != nil {
		l.ErrorContext(ctx, "init failed",
			"global", global,
			"local", local,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "init completed",
			"global", global,
			"local", local,
			"first", first,
			"type", ptype.String(),
		)
	}
}

// LogCollective logs a reduction or other collective operation.
func (l *Logger) LogCollective(ctx context.Context, op string, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "collective failed",
			"op", op,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "collective completed",
			"op", op,
			"duration", d,
		)
	}
}

// LogLocalize logs a gather of remote values.
func (l *Logger) LogLocalize(ctx context.Context, op string, elements int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "localize failed",
			"op", op,
			"elements", elements,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "localize completed",
			"op", op,
			"elements", elements,
			"duration", d,
		)
	}
}
