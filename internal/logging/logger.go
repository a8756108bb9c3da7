package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger tagged with the service name and environment.
// dev gets debug output, everything else info.
func NewLogger(service, env string) *slog.Logger {
	return newLogger(os.Stdout, service, env)
}

func newLogger(w io.Writer, service, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("service", service, "env", env)
}

// Discard is used by tests and tools that don't want output.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
