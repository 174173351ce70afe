// Package server assembles the HTTP API: routes, the middleware chain,
// and the handlers that consume the authentication core's decisions.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskboard/taskboard/internal/auth"
	"github.com/taskboard/taskboard/internal/logging"
	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/monitor"
	"github.com/taskboard/taskboard/internal/ratelimit"
	"github.com/taskboard/taskboard/internal/storage"
)

// Deps are the collaborators the API is wired from. All fields are
// required except Metrics, which may be nil in tests.
type Deps struct {
	Store   storage.Store
	Codec   *auth.Codec
	Limiter ratelimit.Limiter
	Monitor *monitor.Monitor
	Sampler *monitor.Sampler
	Metrics *monitor.Metrics
	Logger  *logging.Logger

	// AllowedOrigins feeds the CORS middleware. Empty disables CORS
	// headers entirely.
	AllowedOrigins []string
}

type server struct {
	deps Deps
}

// New builds the API handler. Request flow: tracing/timing wraps
// everything, then rate limiting, then authentication (with /health,
// /metrics and login exempt), then the route handlers with their
// ownership and role gates.
func New(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	s := &server{deps: deps}

	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/users/me", s.handleMe).Methods(http.MethodGet)

	r.HandleFunc("/api/tasks", s.handleListTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", s.handleCreateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id}", s.handleUpdateTask).Methods(http.MethodPut)
	r.HandleFunc("/api/tasks/{id}", s.handleDeleteTask).Methods(http.MethodDelete)

	admin := middleware.RequireRole("admin", deps.Logger, deps.Metrics)
	r.Handle("/api/admin/stats", admin(http.HandlerFunc(s.handleAdminStats))).Methods(http.MethodGet)

	authn := middleware.NewAuthMiddleware(deps.Codec, deps.Logger, deps.Metrics,
		[]string{"/health", "/metrics", "/api/auth/login"})
	limited := middleware.NewRateLimitMiddleware(deps.Limiter, deps.Logger, deps.Metrics)
	timed := middleware.NewTimingMiddleware(deps.Monitor, deps.Metrics, deps.Logger, 0, r)

	var handler http.Handler = r
	handler = authn.Handler(handler)
	handler = limited.Handler(handler)
	handler = timed.Handler(handler)
	if len(deps.AllowedOrigins) > 0 {
		handler = middleware.NewCORSMiddleware(deps.AllowedOrigins).Handler(handler)
	}
	return handler
}
