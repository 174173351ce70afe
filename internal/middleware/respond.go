// Package middleware provides the HTTP middleware chain: tracing,
// timing/metrics, rate limiting, authentication, and the authorization
// helpers route handlers compose with.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/taskboard/taskboard/internal/errors"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its HTTP response. Non-ServiceError values
// become an opaque 500 so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("Internal server error", err)
	}
	WriteJSON(w, se.HTTPStatus, map[string]string{"error": se.Message})
}

// responseWriter wraps http.ResponseWriter to capture the status code
// for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
