package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger: readable console output in development,
// JSON otherwise. It also replaces the global zerolog logger so packages that
// log through zerolog/log share the same sink.
func NewLogger(env, level string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return newLogger(w, level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	log.Logger = zl
	return zl
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
