// Package logger provides the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance.
var Log = newConsole(os.Stdout)

func newConsole(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "fx-calc").
		Logger()
}

// Configure applies level and output format. Format "json" emits one JSON
// object per line; anything else uses the console writer.
func Configure(level, format string) {
	SetLevel(level)
	if strings.EqualFold(format, "json") {
		SetJSON()
	}
}

// SetLevel sets the global log level. Unknown values fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetJSON switches to JSON output (for production).
func SetJSON() {
	Log = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "fx-calc").
		Logger()
}

// WithUser returns a child logger tagged with a hashed user id.
func WithUser(userID string) zerolog.Logger {
	return Log.With().Str("user_hash", HashUserID(userID)).Logger()
}
