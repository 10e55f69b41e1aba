package reroaring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with reroaring-specific context.
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
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithRunID tags every record with the database instance.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// WithKey adds a key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// LogCommand logs an executed command. Only the command name is logged;
// arguments may be large.
func (l *Logger) LogCommand(ctx context.Context, args []string, d time.Duration, err error) {
	name := ""
	if len(args) > 0 {
		name = strings.ToUpper(args[0])
	}
	if err != nil {
		l.DebugContext(ctx, "command failed",
			"command", name,
			"argc", len(args),
			"duration", d,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "command completed",
			"command", name,
			"argc", len(args),
			"duration", d,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, keys int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed",
			"name", name,
			"keys", keys,
		)
	}
}

// LogRecovery logs an append-only log replay.
func (l *Logger) LogRecovery(ctx context.Context, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "AOF recovery failed",
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "AOF recovery completed",
			"entries_replayed", entriesReplayed,
		)
	}
}

// LogRewrite logs an append-only log rewrite.
func (l *Logger) LogRewrite(ctx context.Context, keys int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "AOF rewrite failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "AOF rewrite completed",
			"keys", keys,
			"duration", d,
		)
	}
}
