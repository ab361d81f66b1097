package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the JSON logger the API writes to stdout.
func New(appEnv string) *slog.Logger {
	return NewTo(os.Stdout, appEnv, levelFor(appEnv))
}

// NewCLI logs to stderr so command output on stdout stays clean.
// Only warnings and errors are shown outside local development.
func NewCLI(appEnv string) *slog.Logger {
	level := slog.LevelWarn
	if appEnv == "local" {
		level = slog.LevelDebug
	}
	return NewTo(os.Stderr, appEnv, level)
}

// NewTo builds a JSON logger tagged with the environment it runs in.
func NewTo(w io.Writer, appEnv string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("env", appEnv)
}

func levelFor(appEnv string) slog.Level {
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
