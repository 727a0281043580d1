// Package logger provides structured logging for the LV-COP SDK.
// It wraps rs/zerolog behind a small field-chaining API so that callers
// never depend on the logging backend directly.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	// Service is attached to every event as the "service" field.
	Service string
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string
	// Console enables human-readable output instead of JSON.
	Console bool
	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// Logger is a leveled, field-chaining logger.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger from config.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return &Logger{zl: ctx.Logger()}
}

// NewDefault creates an info-level JSON logger for the given service name.
func NewDefault(service string) *Logger {
	return New(Config{Service: service})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithField returns a logger with an additional field attached to every event.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger with the error attached to every event.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }

// Info logs a message at info level.
func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

// Error logs a message at error level.
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
