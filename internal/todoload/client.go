package todoload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/todos/internal/domain/model"
	"github.com/okian/todos/internal/domain/types"
)

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError reports a response whose status the caller did not expect.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s %d: %s", e.Method, e.Path, ErrUnexpectedStatus, e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// TodoInput is the body of POST /todos.
type TodoInput struct {
	Content       string     `json:"content"`
	Completed     bool       `json:"completed"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
}

// Client is a typed client for the todos API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health calls GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil, http.StatusOK)
	return err
}

// Create calls POST /todos.
func (c *Client) Create(ctx context.Context, in TodoInput) (model.Todo, error) {
	var out model.Todo
	_, err := c.do(ctx, http.MethodPost, "/todos", "", in, &out, http.StatusCreated)
	return out, err
}

// CreateOnce calls POST /todos with an Idempotency-Key. replayed reports
// whether the server answered from an earlier request with the same key.
func (c *Client) CreateOnce(ctx context.Context, key string, in TodoInput) (todo model.Todo, replayed bool, err error) {
	status, err := c.do(ctx, http.MethodPost, "/todos", key, in, &todo, http.StatusCreated, http.StatusOK)
	return todo, status == http.StatusOK, err
}

// Get calls GET /todos/{id}.
func (c *Client) Get(ctx context.Context, id int64) (model.Todo, error) {
	var out model.Todo
	_, err := c.do(ctx, http.MethodGet, todoPath(id), "", nil, &out, http.StatusOK)
	return out, err
}

// List calls GET /todos?page=N&page_size=M.
func (c *Client) List(ctx context.Context, page, pageSize int) (types.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var out types.Page
	_, err := c.do(ctx, http.MethodGet, "/todos?"+q.Encode(), "", nil, &out, http.StatusOK)
	return out, err
}

// Patch calls PATCH /todos/{id} with the given fields.
func (c *Client) Patch(ctx context.Context, id int64, fields map[string]any) (model.Todo, error) {
	var out model.Todo
	_, err := c.do(ctx, http.MethodPatch, todoPath(id), "", fields, &out, http.StatusOK)
	return out, err
}

// Delete calls DELETE /todos/{id}.
func (c *Client) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, todoPath(id), "", nil, nil, http.StatusOK)
	return err
}

func todoPath(id int64) string {
	return "/todos/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path, key string, in, out any, want ...int) (int, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if !slices.Contains(want, resp.StatusCode) {
		return resp.StatusCode, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s %s: decode body: %w", method, path, err)
	}
	return resp.StatusCode, nil
}
