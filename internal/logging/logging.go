// Package logging provides structured logging setup for skitrip.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Output is where Setup sends log records. Stdout is reserved for JSON
// results, so logs go to stderr.
var Output io.Writer = os.Stderr

// Setup initializes the default slog logger.
// Dev mode uses human-readable text at debug level; otherwise JSON at info.
func Setup(devMode bool) {
	slog.SetDefault(slog.New(NewHandler(Output, devMode)))
}

func NewHandler(w io.Writer, devMode bool) slog.Handler {
	if devMode {
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
}
