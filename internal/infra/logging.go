package infra

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// NewLogger builds a logger writing to stderr. format is "json" or "console".
func NewLogger(level, format string) *log.Logger {
	return newLogger(level, format, os.Stderr)
}

func newLogger(level, format string, w io.Writer) *log.Logger {
	var writer log.Writer
	switch strings.ToLower(format) {
	case "console", "text":
		writer = &log.ConsoleWriter{Writer: w, ColorOutput: false, QuoteString: true}
	default:
		writer = &log.IOWriter{Writer: w}
	}
	return &log.Logger{
		Level:      ParseLevel(level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     writer,
	}
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NopLogger discards everything. Used in tests and as a nil fallback.
func NopLogger() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *log.Logger) *log.Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}
