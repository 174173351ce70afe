package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard/taskboard/internal/auth"
	"github.com/taskboard/taskboard/internal/logging"
	"github.com/taskboard/taskboard/internal/monitor"
	"github.com/taskboard/taskboard/internal/ratelimit"
	"github.com/taskboard/taskboard/internal/server"
	"github.com/taskboard/taskboard/internal/storage"
)

func startTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	mon := monitor.NewMonitor(0, nil)
	sampler, err := monitor.NewSampler(time.Minute, 0, mon, nil)
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	t.Cleanup(sampler.Stop)

	handler := server.New(server.Deps{
		Store:   store,
		Codec:   auth.NewCodec("client-test-secret"),
		Limiter: ratelimit.NewSlidingWindow(1000, time.Minute, nil),
		Monitor: mon,
		Sampler: sampler,
		Logger:  logging.NewNop(),
	})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, store
}

func seedAccount(t *testing.T, store *storage.MemoryStore, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	err = store.CreateUser(context.Background(), &storage.User{
		ID:           "user-" + email,
		Email:        email,
		DisplayName:  email,
		Role:         "user",
		PasswordHash: string(hash),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestClientLoginAndTaskLifecycle(t *testing.T) {
	ts, store := startTestServer(t)
	seedAccount(t, store, "alice@example.com", "s3cret")

	c := New(Config{BaseURL: ts.URL})
	ctx := context.Background()

	user, err := c.Login(ctx, "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("user email = %q", user.Email)
	}

	created, err := c.CreateTask(ctx, "buy milk", "2 liters")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == "" || created.Title != "buy milk" {
		t.Fatalf("unexpected task: %+v", created)
	}

	created.Done = true
	updated, err := c.UpdateTask(ctx, created)
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if !updated.Done {
		t.Error("task not marked done")
	}

	tasks, err := c.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("list len = %d, want 1", len(tasks))
	}

	if err := c.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := c.GetTask(ctx, created.ID); err == nil {
		t.Fatal("expected error fetching deleted task")
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ts, _ := startTestServer(t)

	c := New(Config{BaseURL: ts.URL})
	_, err := c.ListTasks(context.Background())
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Message != "Access token required" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClientHealth(t *testing.T) {
	ts, _ := startTestServer(t)

	c := New(Config{BaseURL: ts.URL})
	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}
}
