// Package client is a small Go client for the taskboard HTTP API. It
// handles bearer-token attachment, bounded response reading, and retry
// on transient failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20

// Client talks to a taskboard server. The zero value is not usable;
// construct with New.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
}

// Config configures a Client. Token may be empty for unauthenticated
// calls; a later Login fills it in.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// New creates a Client for the given server.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: maxRetries,
	}
}

// SetToken replaces the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Task mirrors the server's task resource.
type Task struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User mirrors the server's account resource.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var out struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.User, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/users/me", nil)
	if err != nil {
		return nil, err
	}
	var u User
	if err := decodeResponse(resp, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListTasks returns the caller's tasks.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := decodeResponse(resp, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task owned by the caller.
func (c *Client) CreateTask(ctx context.Context, title, notes string) (*Task, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/tasks",
		map[string]string{"title": title, "notes": notes})
	if err != nil {
		return nil, err
	}
	var t Task
	if err := decodeResponse(resp, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/tasks/"+id, nil)
	if err != nil {
		return nil, err
	}
	var t Task
	if err := decodeResponse(resp, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask replaces a task's mutable fields.
func (c *Client) UpdateTask(ctx context.Context, task *Task) (*Task, error) {
	resp, err := c.do(ctx, http.MethodPut, "/api/tasks/"+task.ID, map[string]interface{}{
		"title": task.Title,
		"notes": task.Notes,
		"done":  task.Done,
	})
	if err != nil {
		return nil, err
	}
	var t Task
	if err := decodeResponse(resp, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask removes a task by id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// Health fetches the server's health report without authentication.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	return c.doWithRetry(ctx, method, path, body, 0)
}

// doWithRetry retries on 429: a rate-limited call may succeed once the
// window slides.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body interface{}, attempt int) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
		return c.doWithRetry(ctx, method, path, body, attempt+1)
	}

	return resp, nil
}

// decodeResponse reads the response into target, turning error statuses
// into Go errors. Bodies are read with a hard size cap.
func decodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseBytes)

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(body))

		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if target == nil {
		_, err := io.Copy(io.Discard, limited)
		return err
	}

	body, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is an error status answered by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}
