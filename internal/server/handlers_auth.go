package server

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard/taskboard/internal/auth"
	"github.com/taskboard/taskboard/internal/errors"
	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/storage"
)

func subjectFor(u *storage.User) auth.Subject {
	return auth.Subject{ID: u.ID, DisplayName: u.DisplayName, Role: u.Role}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, errors.BadRequest("email and password are required"))
		return
	}

	user, found, err := s.deps.Store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		middleware.WriteError(w, errors.Internal("login failed", err))
		return
	}
	// Unknown email and wrong password answer identically.
	if !found || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.deps.Logger.LogSecurityEvent(r.Context(), "login_failed", map[string]interface{}{
			"email": req.Email,
		})
		middleware.WriteJSON(w, http.StatusUnauthorized,
			map[string]string{"error": "Invalid email or password"})
		return
	}

	token, err := s.deps.Codec.Issue(subjectFor(user))
	if err != nil {
		middleware.WriteError(w, errors.Internal("failed to issue token", err))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		middleware.WriteError(w, errors.MissingCredential())
		return
	}

	user, found, err := s.deps.Store.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		middleware.WriteError(w, errors.Internal("profile lookup failed", err))
		return
	}
	if !found {
		middleware.WriteError(w, errors.NotFound("user not found"))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}
