package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/taskboard/taskboard/internal/errors"
	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/storage"
)

type taskPayload struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
	Done  bool   `json:"done"`
}

func (s *server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		middleware.WriteError(w, errors.MissingCredential())
		return
	}

	tasks, err := s.deps.Store.ListTasksByOwner(r.Context(), claims.UserID)
	if err != nil {
		middleware.WriteError(w, errors.Internal("failed to list tasks", err))
		return
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}
	middleware.WriteJSON(w, http.StatusOK, tasks)
}

func (s *server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		middleware.WriteError(w, errors.MissingCredential())
		return
	}

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteError(w, errors.BadRequest("invalid request body"))
		return
	}
	if payload.Title == "" {
		middleware.WriteError(w, errors.BadRequest("title is required"))
		return
	}

	task := &storage.Task{
		ID:      uuid.New().String(),
		OwnerID: claims.UserID,
		Title:   payload.Title,
		Notes:   payload.Notes,
		Done:    payload.Done,
	}
	if err := s.deps.Store.CreateTask(r.Context(), task); err != nil {
		middleware.WriteError(w, errors.Internal("failed to create task", err))
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, task)
}

// loadOwnedTask fetches the task and enforces the ownership gate. A nil
// return means the response was already written.
func (s *server) loadOwnedTask(w http.ResponseWriter, r *http.Request) *storage.Task {
	id := mux.Vars(r)["id"]

	task, found, err := s.deps.Store.GetTask(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, errors.Internal("failed to load task", err))
		return nil
	}
	if !found {
		middleware.WriteError(w, errors.NotFound("task not found"))
		return nil
	}
	if !middleware.RequireOwnership(w, r, task.OwnerID) {
		return nil
	}
	return task
}

func (s *server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task := s.loadOwnedTask(w, r)
	if task == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, task)
}

func (s *server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	task := s.loadOwnedTask(w, r)
	if task == nil {
		return
	}

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteError(w, errors.BadRequest("invalid request body"))
		return
	}
	if payload.Title != "" {
		task.Title = payload.Title
	}
	task.Notes = payload.Notes
	task.Done = payload.Done

	if err := s.deps.Store.UpdateTask(r.Context(), task); err != nil {
		middleware.WriteError(w, errors.Internal("failed to update task", err))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, task)
}

func (s *server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	task := s.loadOwnedTask(w, r)
	if task == nil {
		return
	}

	if _, err := s.deps.Store.DeleteTask(r.Context(), task.ID); err != nil {
		middleware.WriteError(w, errors.Internal("failed to delete task", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
