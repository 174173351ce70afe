package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/taskboard/taskboard/internal/logging"
	"github.com/taskboard/taskboard/internal/monitor"
)

// TimingMiddleware wraps the whole request lifecycle: it assigns a trace
// ID, starts a per-request timer held in the request scope, and
// guarantees exactly one stop per start by deferring the stop. The
// deferred call runs on success, handled errors, and panics alike.
type TimingMiddleware struct {
	monitor       *monitor.Monitor
	metrics       *monitor.Metrics
	logger        *logging.Logger
	slowThreshold time.Duration
	routes        *mux.Router
}

// NewTimingMiddleware creates the middleware. Zero slowThreshold selects
// the monitor default. routes, when non-nil, resolves requests to their
// route template for metric labels; it must be the router this middleware
// wraps.
func NewTimingMiddleware(mon *monitor.Monitor, metrics *monitor.Metrics, logger *logging.Logger, slowThreshold time.Duration, routes *mux.Router) *TimingMiddleware {
	if slowThreshold <= 0 {
		slowThreshold = monitor.DefaultSlowThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TimingMiddleware{
		monitor:       mon,
		metrics:       metrics,
		logger:        logger,
		slowThreshold: slowThreshold,
		routes:        routes,
	}
}

// Handler returns the middleware handler.
func (m *TimingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Trace-ID", traceID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if m.metrics != nil {
			m.metrics.IncrementInFlight()
		}

		// The timer lives in this frame, not in a shared registry, so
		// the stop cannot race with another request's measurement.
		timer := m.monitor.StartTimer(r.Method + " " + r.URL.Path)

		defer func() {
			rec := recover()
			if rec != nil {
				m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
					"panic": rec,
				}).Error("handler panicked")
				if !wrapped.written {
					WriteJSON(wrapped, http.StatusInternalServerError,
						map[string]string{"error": "Internal server error"})
				}
			}

			duration, _ := timer.Stop()

			if m.metrics != nil {
				m.metrics.DecrementInFlight()
				m.metrics.RecordHTTPRequest(r.Method, m.routePattern(r), strconv.Itoa(wrapped.statusCode), duration)
				if duration > m.slowThreshold {
					m.metrics.RecordSlowRequest()
				}
			}

			m.logger.LogRequest(r.Context(), r.Method, r.URL.Path, wrapped.statusCode, duration)
		}()

		next.ServeHTTP(wrapped, r)
	})
}

// routePattern prefers the mux route template over the raw path so
// metric labels stay low-cardinality. CurrentRoute only works for
// handlers inside the router; this middleware runs outside it, so
// unmatched requests are resolved against the configured router.
func (m *TimingMiddleware) routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	if m.routes != nil {
		var match mux.RouteMatch
		if m.routes.Match(r, &match) && match.Route != nil {
			if tmpl, err := match.Route.GetPathTemplate(); err == nil {
				return tmpl
			}
		}
	}
	return r.URL.Path
}
