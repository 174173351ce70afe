package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used for development and tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
	tasks map[string]*Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		tasks: make(map[string]*Task),
	}
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (*User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("storage: user %s already exists", user.ID)
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("storage: email %s already registered", user.Email)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("storage: task %s already exists", task.ID)
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false, nil
	}
	cp := *t
	return &cp, true, nil
}

func (s *MemoryStore) ListTasksByOwner(_ context.Context, ownerID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[task.ID]
	if !ok {
		return fmt.Errorf("storage: task %s not found", task.ID)
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}
