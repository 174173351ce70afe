// Package logging provides structured logging for the service, backed by
// zerolog. Loggers are enriched from the request context (trace ID, user
// ID, role) so every line emitted while handling a request correlates.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with context-aware enrichment helpers.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger for the named service. Level is one of debug, info,
// warn, error (unknown values fall back to info). Format is "json" or
// "console".
func New(service, level, format string) *Logger {
	return NewWithWriter(os.Stderr, service, level, format)
}

// NewWithWriter is New with an explicit output. Tests use it to capture
// emitted lines.
func NewWithWriter(w io.Writer, service, level, format string) *Logger {
	lvl := parseLevel(level)

	var zl zerolog.Logger
	if format == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	} else {
		zl = zerolog.New(w)
	}

	zl = zl.Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()

	return &Logger{zl: zl}
}

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithContext returns a logger enriched with the trace ID, user ID and
// role found in ctx, when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.zl.With()
	if traceID := GetTraceID(ctx); traceID != "" {
		zc = zc.Str("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		zc = zc.Str("user_id", userID)
	}
	if role := GetRole(ctx); role != "" {
		zc = zc.Str("role", role)
	}
	return &Logger{zl: zc.Logger()}
}

// WithError returns a logger carrying the given error.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithFields returns a logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// LogRequest emits one line per completed HTTP request. Server errors log
// at error level, client errors at warn, everything else at info.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	evt := l.WithContext(ctx).zl.Info()
	switch {
	case status >= 500:
		evt = l.WithContext(ctx).zl.Error()
	case status >= 400:
		evt = l.WithContext(ctx).zl.Warn()
	}
	evt.
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration).
		Msg("request completed")
}

// LogSecurityEvent emits a warn-level line for auth and admission
// decisions worth auditing (denied tokens, rate limiting, role failures).
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).zl.Warn().
		Str("security_event", event).
		Fields(fields).
		Msg("security event")
}
