package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/taskboard/taskboard/internal/errors"
	"github.com/taskboard/taskboard/internal/logging"
	"github.com/taskboard/taskboard/internal/monitor"
	"github.com/taskboard/taskboard/internal/ratelimit"
)

// RateLimitMiddleware applies sliding-window admission control before
// any further processing. Keys prefer the authenticated user ID and fall
// back to the client address, so the limiter also protects the
// authentication path itself.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	logger  *logging.Logger
	metrics *monitor.Metrics
}

// NewRateLimitMiddleware creates the middleware around any Limiter.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, logger *logging.Logger, metrics *monitor.Metrics) *RateLimitMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
	}
}

// Handler returns the middleware handler. Admission checks are measured
// against the request's own timestamp.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		allowed, err := m.limiter.Allow(r.Context(), key, time.Now())
		if err != nil {
			// The limiter backend is unreachable. Failing open would
			// drop protection; failing closed blocks all traffic. We
			// fail open and make noise about it.
			m.logger.WithContext(r.Context()).WithError(err).Error("rate limiter unavailable, admitting request")
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			if m.metrics != nil {
				m.metrics.RecordRateLimited()
			}
			m.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			})
			WriteError(w, errors.RateLimited())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey picks the admission key: authenticated user first, client IP
// otherwise.
func clientKey(r *http.Request) string {
	if userID := logging.GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
