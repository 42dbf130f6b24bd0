// Package logger provides the process-wide structured logger. It keeps the
// leveled call surface the rest of the codebase was written against
// (Debug/Info/Warn/Error) but is backed by zerolog instead of the standard
// library's log package, so output is structured and the level is cheap to
// check on the hot path.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// Init configures the logger level from LOG_LEVEL (debug|info|warn|error)
// and output format from LOG_FORMAT (console|json). Defaults to info/console.
func Init() {
	level := zerolog.InfoLevel
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// Debug logs a debug-level message. Arguments are printf-style for parity
// with the hand-rolled logger this replaced.
func Debug(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}

// Info logs an info-level message.
func Info(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

// Warn logs a warn-level message.
func Warn(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

// Error logs an error-level message. Always emitted regardless of level.
func Error(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

// With returns a child logger carrying a structured field, for call sites
// that want to tag a run of log lines with e.g. a documentId.
func With(key, value string) zerolog.Logger {
	return log.With().Str(key, value).Logger()
}
