// Package remote is the HTTP client for the event roster backend.
//
// Every method maps to exactly one REST call. Failures are reported as
// *model.NetworkError so callers can distinguish "the backend said no"
// (Status set) from "the backend was unreachable" (wrapped transport
// error); the reconciliation engine keys its offline handling off that
// distinction.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eventcompass/eventcompass/internal/model"
)

// DefaultTimeout bounds each request when the caller's context carries no
// deadline of its own.
const DefaultTimeout = 10 * time.Second

// Client is a thin typed wrapper over the backend's REST API. The base
// URL may be repointed at runtime (config hot reload); in-flight requests
// finish against the address they started with.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	http    *http.Client
}

// New creates a client for the backend at baseURL.
//
// If httpClient is nil, a default client with DefaultTimeout is used.
//
// Example:
//
//	client := remote.New("http://localhost:8000", nil)
//	members, err := client.ListMembers(ctx)
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL repoints the client at a different backend.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
}

// do issues one request and decodes the response into out (unless out is
// nil). Request bodies are JSON-encoded; nil means no body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &model.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.NetworkError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// ListMembers fetches every member.
func (c *Client) ListMembers(ctx context.Context) ([]model.Member, error) {
	var out []model.Member
	if err := c.do(ctx, http.MethodGet, "/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMember creates a member and returns the canonical record with its
// server-assigned id.
func (c *Client) CreateMember(ctx context.Context, in model.MemberInput) (model.Member, error) {
	var out model.Member
	err := c.do(ctx, http.MethodPost, "/members", in, &out)
	return out, err
}

// UpdateMember applies a partial update and returns the updated record.
func (c *Client) UpdateMember(ctx context.Context, id int64, update model.MemberUpdate) (model.Member, error) {
	var out model.Member
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/members/%d", id), update, &out)
	return out, err
}

// DeleteMember removes a member.
func (c *Client) DeleteMember(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/members/%d", id), nil, nil)
}

// ListMaterials fetches every material.
func (c *Client) ListMaterials(ctx context.Context) ([]model.Material, error) {
	var out []model.Material
	if err := c.do(ctx, http.MethodGet, "/materials", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMaterial creates a material and returns the canonical record.
func (c *Client) CreateMaterial(ctx context.Context, in model.MaterialInput) (model.Material, error) {
	var out model.Material
	err := c.do(ctx, http.MethodPost, "/materials", in, &out)
	return out, err
}

// UpdateMaterial applies a partial update and returns the updated record.
func (c *Client) UpdateMaterial(ctx context.Context, id int64, update model.MaterialUpdate) (model.Material, error) {
	var out model.Material
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/materials/%d", id), update, &out)
	return out, err
}

// DeleteMaterial removes a material.
func (c *Client) DeleteMaterial(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/materials/%d", id), nil, nil)
}

// ListSchedules fetches every schedule.
func (c *Client) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	var out []model.Schedule
	if err := c.do(ctx, http.MethodGet, "/schedules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSchedule creates a schedule and returns the canonical record.
func (c *Client) CreateSchedule(ctx context.Context, in model.ScheduleInput) (model.Schedule, error) {
	var out model.Schedule
	err := c.do(ctx, http.MethodPost, "/schedules", in, &out)
	return out, err
}

// UpdateSchedule applies a partial update and returns the updated record.
func (c *Client) UpdateSchedule(ctx context.Context, id int64, update model.ScheduleUpdate) (model.Schedule, error) {
	var out model.Schedule
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/schedules/%d", id), update, &out)
	return out, err
}

// DeleteSchedule removes a schedule. The backend cascades to its tasks.
func (c *Client) DeleteSchedule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/schedules/%d", id), nil, nil)
}

// ListTasks fetches the tasks under one schedule.
func (c *Client) ListTasks(ctx context.Context, scheduleID int64) ([]model.Task, error) {
	var out []model.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/schedules/%d/tasks", scheduleID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask creates a task under a schedule and returns the canonical
// record.
func (c *Client) CreateTask(ctx context.Context, scheduleID int64, in model.TaskInput) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/schedules/%d/tasks", scheduleID), in, &out)
	return out, err
}

// UpdateTask applies a partial update and returns the updated record.
func (c *Client) UpdateTask(ctx context.Context, id int64, update model.TaskUpdate) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d", id), update, &out)
	return out, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil)
}

// ListTodos fetches every todo.
func (c *Client) ListTodos(ctx context.Context) ([]model.Todo, error) {
	var out []model.Todo
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTodo creates a todo and returns the canonical record.
func (c *Client) CreateTodo(ctx context.Context, in model.TodoInput) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, http.MethodPost, "/todos", in, &out)
	return out, err
}

// UpdateTodo applies a partial update and returns the updated record.
func (c *Client) UpdateTodo(ctx context.Context, id int64, update model.TodoUpdate) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/todos/%d", id), update, &out)
	return out, err
}

// DeleteTodo removes a todo.
func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/todos/%d", id), nil, nil)
}

// Reset wipes all backend data. Destructive; callers gate this behind an
// explicit confirmation.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset", nil, nil)
}

// Health probes the backend's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}
