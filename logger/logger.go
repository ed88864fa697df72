// Package logger builds the process-wide zerolog logger. Components derive
// scoped sub-loggers from it via logger.With().Str("component", ...).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger with the configured level and output format.
// Format "console" renders human-readable output; anything else emits JSON.
func New(level int, format string) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if format == "console" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(zerolog.Level(level)).
		With().
		Timestamp().
		Logger()
}
