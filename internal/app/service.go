// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	repository "github.com/okian/todos/internal/adapters/repository"
	"github.com/okian/todos/internal/domain/dedupe"
	"github.com/okian/todos/internal/domain/model"
	"github.com/okian/todos/pkg/logger"
	"github.com/okian/todos/pkg/metrics"
)

// Service implements the API dependencies on top of a todo store.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper

	// Configuration
	pageSize int

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects the todo store. Without it New creates a PagedStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDeduper sets the idempotency key store used by CreateTodoOnce.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithPageSize sets the initial page size of the default store.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// New constructs a Service.
func New(opts ...Option) *Service {
	s := &Service{
		pageSize: repository.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewPagedStore(repository.WithPageSize(s.pageSize))
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper()
	}
	return s
}

// Start marks the service ready to serve.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "todo service started", logger.Int("pageSize", s.pageSize))
	return nil
}

// Stop marks the service stopped. The in-memory store is discarded with the process.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "todo service stopped",
		logger.Int("todos", s.store.Count(context.Background())))
}

// CreateTodo stores a new todo.
func (s *Service) CreateTodo(ctx context.Context, in model.TodoCreate) (model.Todo, error) {
	defer observe("add", time.Now())

	todo, err := s.store.Add(ctx, in)
	if err != nil {
		s.log().Error(ctx, "create todo failed", logger.Error(err))
		return model.Todo{}, err
	}
	metrics.RecordTodoCreated()
	s.log().Debug(ctx, "todo created", logger.Int64("id", todo.ID))
	return todo, nil
}

// CreateTodoOnce stores a new todo unless key was used before, in which case
// the todo first created for key is returned with replayed set. The replay is
// a snapshot and is returned even if the todo was changed or deleted since.
func (s *Service) CreateTodoOnce(ctx context.Context, key string, in model.TodoCreate) (model.Todo, bool, error) {
	todo, replayed, err := s.deduper.Do(ctx, key, func(ctx context.Context) (model.Todo, error) {
		return s.CreateTodo(ctx, in)
	})
	if err != nil {
		return model.Todo{}, false, err
	}
	if replayed {
		metrics.RecordIdempotentReplay()
		s.log().Debug(ctx, "create replayed", logger.String("key", key), logger.Int64("id", todo.ID))
	}
	return todo, replayed, nil
}

// GetTodo returns a single todo.
func (s *Service) GetTodo(ctx context.Context, id int64) (model.Todo, error) {
	defer observe("get", time.Now())
	return s.store.Get(ctx, id)
}

// ListTodos returns one page of todos.
func (s *Service) ListTodos(ctx context.Context, pageSize, page int) (repository.PageResult, error) {
	defer observe("list", time.Now())
	return s.store.List(ctx, pageSize, page)
}

// ReplaceTodo overwrites a todo's fields.
func (s *Service) ReplaceTodo(ctx context.Context, id int64, in model.TodoCreate) (model.Todo, error) {
	defer observe("replace", time.Now())

	todo, err := s.store.Replace(ctx, id, in)
	if err != nil {
		s.logLookup(ctx, "replace", id, err)
		return model.Todo{}, err
	}
	metrics.RecordTodoUpdated("replace")
	s.log().Debug(ctx, "todo replaced", logger.Int64("id", id))
	return todo, nil
}

// PatchTodo merges the given fields into a todo.
func (s *Service) PatchTodo(ctx context.Context, id int64, patch model.TodoPatch) (model.Todo, error) {
	defer observe("update", time.Now())

	todo, err := s.store.Update(ctx, id, patch)
	if err != nil {
		s.logLookup(ctx, "patch", id, err)
		return model.Todo{}, err
	}
	metrics.RecordTodoUpdated("patch")
	s.log().Debug(ctx, "todo patched", logger.Int64("id", id))
	return todo, nil
}

// DeleteTodo removes a todo. Deleting an unknown id succeeds.
func (s *Service) DeleteTodo(ctx context.Context, id int64) error {
	defer observe("remove", time.Now())

	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		s.log().Error(ctx, "delete todo failed", logger.Int64("id", id), logger.Error(err))
		return err
	}
	if removed {
		metrics.RecordTodoRemoved()
	}
	s.log().Debug(ctx, "todo delete", logger.Int64("id", id), logger.Bool("removed", removed))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.store.Count(context.Background())
	metrics.UpdateTodosTotal(total)

	stats := map[string]interface{}{
		"started":         s.started,
		"totalTodos":      total,
		"defaultPageSize": s.pageSize,
		"idempotencyKeys": s.deduper.Size(),
	}
	if ps, ok := s.store.(interface{ PageSize() int }); ok {
		stats["currentPageSize"] = ps.PageSize()
	}
	if s.started {
		stats["uptimeSeconds"] = int(time.Since(s.startedAt).Seconds())
	}
	return stats
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

func (s *Service) logLookup(ctx context.Context, op string, id int64, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		s.log().Debug(ctx, "todo not found", logger.String("op", op), logger.Int64("id", id))
		return
	}
	s.log().Error(ctx, "todo "+op+" failed", logger.Int64("id", id), logger.Error(err))
}

func observe(op string, start time.Time) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000)
}
