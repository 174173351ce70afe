// Package storage defines the persistence contracts consumed by the
// route layer. The authentication core never queries storage itself; it
// only hands decoded identities to handlers, which look up records here.
package storage

import (
	"context"
	"time"
)

// User is an account record. PasswordHash is a bcrypt digest; the hash
// never leaves this layer.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Role         string    `db:"role" json:"role,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Task is the resource the API manages. OwnerID gates access.
type Task struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	Done      bool      `db:"done" json:"done"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserStore provides account lookup. Absence is reported through the
// boolean, not an error: a missing user is an expected outcome.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*User, bool, error)
	FindUserByEmail(ctx context.Context, email string) (*User, bool, error)
	CreateUser(ctx context.Context, user *User) error
}

// TaskStore provides task CRUD.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, bool, error)
	ListTasksByOwner(ctx context.Context, ownerID string) ([]*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id string) (bool, error)
}

// Store bundles both contracts; each backend implements the full set.
type Store interface {
	UserStore
	TaskStore
}
