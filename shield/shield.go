// Package shield provides the HTTP middleware in front of the panel API:
// security headers, request body limits and request ids with a per-request
// logger.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger, 1<<20) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the standard middleware stack for a JSON API, outermost
// first: RequestID, SecurityHeaders, MaxBody.
func APIStack(logger *slog.Logger, maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		RequestID(logger),
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
	}
}
