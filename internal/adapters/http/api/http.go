// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	repository "github.com/okian/todos/internal/adapters/repository"
	"github.com/okian/todos/internal/domain/model"
	"github.com/okian/todos/pkg/logger"
)

// Dependencies required by the todo handlers.
type Dependencies interface {
	CreateTodo(ctx context.Context, in model.TodoCreate) (model.Todo, error)
	CreateTodoOnce(ctx context.Context, key string, in model.TodoCreate) (todo model.Todo, replayed bool, err error)
	GetTodo(ctx context.Context, id int64) (model.Todo, error)
	ListTodos(ctx context.Context, pageSize, page int) (repository.PageResult, error)
	ReplaceTodo(ctx context.Context, id int64, in model.TodoCreate) (model.Todo, error)
	PatchTodo(ctx context.Context, id int64, patch model.TodoPatch) (model.Todo, error)
	DeleteTodo(ctx context.Context, id int64) error
}

// Default pagination limits.
const (
	DefaultPageSize    = repository.DefaultPageSize
	DefaultMaxPageSize = 100
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	todosHandler  *TodosHandler

	corsOrigin string
	logger     logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPagination sets the default and maximum page size for GET /todos.
func WithPagination(defaultSize, maxSize int) ServerOption {
	return func(s *Server) {
		if defaultSize > 0 {
			s.todosHandler.defaultPageSize = defaultSize
		}
		if maxSize >= s.todosHandler.defaultPageSize {
			s.todosHandler.maxPageSize = maxSize
		}
	}
}

// WithPublicURL prefixes pagination links with base, e.g. "http://localhost:3000".
func WithPublicURL(base string) ServerOption {
	return func(s *Server) {
		s.todosHandler.publicURL = base
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin value.
func WithCORSOrigin(origin string) ServerOption {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithLogger enables access logging and error logging.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
		s.todosHandler.logger = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		todosHandler:  NewTodosHandler(deps),
		corsOrigin:    "*",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	h := s.todosHandler

	mux.HandleFunc("GET /todos", MetricsMiddleware(h.HandleList, "todos"))
	mux.HandleFunc("POST /todos", MetricsMiddleware(h.HandleCreate, "todos"))
	mux.HandleFunc("GET /todos/{id}", MetricsMiddleware(h.HandleGet, "todo"))
	mux.HandleFunc("PUT /todos/{id}", MetricsMiddleware(h.HandleReplace, "todo"))
	mux.HandleFunc("PATCH /todos/{id}", MetricsMiddleware(h.HandlePatch, "todo"))
	mux.HandleFunc("DELETE /todos/{id}", MetricsMiddleware(h.HandleDelete, "todo"))

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

// Handler wraps next with the request id, access log and CORS middleware.
func (s *Server) Handler(next http.Handler) http.Handler {
	h := CORSMiddleware(next, s.corsOrigin)
	if s.logger != nil {
		h = AccessLogMiddleware(h, s.logger)
	}
	return RequestIDMiddleware(h)
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, fields map[string]string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Errors: fields})
}
