package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is the Store backed by Postgres via sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the given database URL and verifies the
// connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection. Used by tests.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("storage: load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("storage: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("storage: build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id string) (*User, bool, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, email, display_name, role, password_hash, created_at FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: find user by id: %w", err)
	}
	return &u, true, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*User, bool, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, email, display_name, role, password_hash, created_at FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: find user by email: %w", err)
	}
	return &u, true, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (id, email, display_name, role, password_hash, created_at)
		 VALUES (:id, :email, :display_name, :role, :password_hash, :created_at)`, user)
	if err != nil {
		return fmt.Errorf("storage: create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *Task) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, title, notes, done, created_at, updated_at)
		 VALUES (:id, :owner_id, :title, :notes, :done, now(), now())`, task)
	if err != nil {
		return fmt.Errorf("storage: create task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*Task, bool, error) {
	var t Task
	err := s.db.GetContext(ctx, &t,
		`SELECT id, owner_id, title, notes, done, created_at, updated_at FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get task: %w", err)
	}
	return &t, true, nil
}

func (s *PostgresStore) ListTasksByOwner(ctx context.Context, ownerID string) ([]*Task, error) {
	var tasks []*Task
	err := s.db.SelectContext(ctx, &tasks,
		`SELECT id, owner_id, title, notes, done, created_at, updated_at
		 FROM tasks WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task *Task) error {
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE tasks SET title = :title, notes = :notes, done = :done, updated_at = now()
		 WHERE id = :id`, task)
	if err != nil {
		return fmt.Errorf("storage: update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update task rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage: task %s not found", task.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete task rows: %w", err)
	}
	return n > 0, nil
}
