package middleware

import (
	"context"
	"net/http"

	"github.com/taskboard/taskboard/internal/auth"
	"github.com/taskboard/taskboard/internal/errors"
	"github.com/taskboard/taskboard/internal/logging"
	"github.com/taskboard/taskboard/internal/monitor"
)

type claimsKey struct{}

// ClaimsFromContext returns the decoded identity for the request, or nil
// on unauthenticated paths.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// WithClaims returns a context carrying the decoded identity. Exposed
// for handler tests.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// AuthMiddleware verifies bearer credentials and attaches the decoded
// identity to the request scope.
type AuthMiddleware struct {
	codec     *auth.Codec
	logger    *logging.Logger
	metrics   *monitor.Metrics
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the middleware. Requests to skipPaths pass
// through unauthenticated.
func NewAuthMiddleware(codec *auth.Codec, logger *logging.Logger, metrics *monitor.Metrics, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AuthMiddleware{
		codec:     codec,
		logger:    logger,
		metrics:   metrics,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler. A missing or malformed header
// and an invalid token are distinct failures with distinct bodies, per
// the bearer contract.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
		if !ok {
			m.deny(w, r, errors.MissingCredential())
			return
		}

		claims, err := m.codec.Verify(token)
		if err != nil {
			m.deny(w, r, errors.InvalidCredential(err))
			return
		}

		ctx := WithClaims(r.Context(), claims)
		ctx = logging.WithUserID(ctx, claims.UserID)
		if claims.Role != "" {
			ctx = logging.WithRole(ctx, claims.Role)
		}

		m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id": claims.UserID,
		}).Debug("authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) deny(w http.ResponseWriter, r *http.Request, serviceErr *errors.ServiceError) {
	if m.metrics != nil {
		m.metrics.RecordAuthFailure(string(serviceErr.Code))
	}
	m.logger.WithContext(r.Context()).WithError(serviceErr).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed")

	WriteError(w, serviceErr)
}

// RequireOwnership denies the request unless the authenticated identity
// owns the resource identified by ownerID. Returns false when the
// response was already written.
func RequireOwnership(w http.ResponseWriter, r *http.Request, ownerID string) bool {
	if err := auth.RequireOwnership(ClaimsFromContext(r.Context()), ownerID); err != nil {
		WriteError(w, err)
		return false
	}
	return true
}

// RequireRole wraps a handler with a role check against the decoded
// identity. Missing role and wrong role produce distinct responses.
func RequireRole(role string, logger *logging.Logger, metrics *monitor.Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(ClaimsFromContext(r.Context()), role); err != nil {
				se := errors.GetServiceError(err)
				if metrics != nil && se != nil {
					metrics.RecordAuthFailure(string(se.Code))
				}
				logger.LogSecurityEvent(r.Context(), "role_check_failed", map[string]interface{}{
					"path":          r.URL.Path,
					"required_role": role,
				})
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
