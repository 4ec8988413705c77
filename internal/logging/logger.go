package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger *zerolog.Logger
)

// Init initializes the global structured logger.
// Format is "console" (default) or "json"; output always goes to stderr so
// that command output on stdout stays machine readable.
func Init(level, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(level, format string, out io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(level, "warning") {
		lvl = zerolog.WarnLevel
	}

	w := out
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Lock()
	logger = &l
	mu.Unlock()
}

// Logger returns the global logger instance, creating an info-level console
// logger on first use if Init was never called.
func Logger() *zerolog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		d := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(zerolog.InfoLevel).With().Timestamp().Logger()
		logger = &d
	}
	return logger
}

// WithComponent returns a child logger tagged with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// Debug logs a debug message.
func Debug(msg string) {
	Logger().Debug().Msg(msg)
}

// Info logs an info message.
func Info(msg string) {
	Logger().Info().Msg(msg)
}

// Warn logs a warning message.
func Warn(msg string) {
	Logger().Warn().Msg(msg)
}

// Error logs an error message.
func Error(err error, msg string) {
	Logger().Error().Err(err).Msg(msg)
}
