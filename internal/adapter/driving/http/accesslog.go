package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const redacted = "REDACTED"

// sensitiveParams never reach the access log in clear.
var sensitiveParams = []string{"secret"}

type accessLogFormatter struct {
	l zerolog.Logger
}

func (f accessLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &accessLogEntry{
		l: f.l.With().
			Str("method", r.Method).
			Str("uri", redactURI(r)).
			Str("remote_addr", r.RemoteAddr).
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger(),
	}
}

// redactURI returns the request URI with sensitive query values masked.
func redactURI(r *http.Request) string {
	q := r.URL.Query()
	hit := false
	for _, k := range sensitiveParams {
		if q.Has(k) {
			q.Set(k, redacted)
			hit = true
		}
	}
	if !hit {
		return r.URL.RequestURI()
	}
	u := *r.URL
	u.RawQuery = q.Encode()
	return u.RequestURI()
}

type accessLogEntry struct {
	l zerolog.Logger
}

func (e *accessLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.l.Info().
		Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("Request")
}

func (e *accessLogEntry) Panic(v interface{}, stack []byte) {
	e.l.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("Request panicked")
}
