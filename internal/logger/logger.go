// Package logger provides a thin wrapper around zerolog.Logger with
// convenience constructors and context helpers used across gitdrop.
//
// Logger embeds zerolog.Logger, so the full zerolog API (Debug, Info,
// Warn, Error, Fatal, ...) is available directly. Request handlers obtain
// a request-scoped logger via FromRequest; everything else receives a
// *Logger through its constructor.
package logger

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger so helper methods can be added without
// touching the upstream type.
type Logger struct {
	zerolog.Logger
}

// New constructs a JSON logger writing to stdout. The role label
// (e.g. "server") is attached to every entry so logs from different
// components can be filtered apart.
func New(role string) *Logger {
	l := zerolog.New(os.Stdout).With().
		Str("role", role).
		Timestamp().
		Logger()

	return &Logger{l}
}

// Nop returns a logger that discards all output. Intended for tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Child returns a logger inheriting all fields of the receiver.
// The child can be enriched with extra fields without affecting the parent.
func (l *Logger) Child() *Logger {
	return &Logger{l.With().Logger()}
}

// FromContext returns the logger attached to ctx via zerolog's WithContext.
// If none was attached zerolog falls back to its global logger, so the
// result is never nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}

// FromRequest returns the request-scoped logger attached by middleware.
func FromRequest(r *http.Request) *Logger {
	return FromContext(r.Context())
}
