package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/todos/internal/domain/model"
	"github.com/okian/todos/pkg/metrics"
)

// Redistribution triggers, used as metric labels.
const (
	triggerAdd      = "add"
	triggerRemove   = "remove"
	triggerPageSize = "page_size"
)

// PagedStore keeps todos as an ordered list of pages.
//
// Concatenating pages in order gives every todo, newest first. After any
// add or remove, and whenever List asks for a different page size, the pages
// are rebuilt from scratch so all of them hold pageSize todos except possibly
// the last. Lookups scan the pages. Both are O(n).
type PagedStore struct {
	mu       sync.RWMutex
	pages    [][]model.Todo
	pageSize int
	lastID   int64
}

var _ Store = (*PagedStore)(nil)

// NewPagedStore creates an empty store.
func NewPagedStore(opts ...Option) *PagedStore {
	s := &PagedStore{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateTodosTotal(0)
	metrics.UpdatePagesTotal(0)
	return s
}

// Add implements Store.
func (s *PagedStore) Add(_ context.Context, in model.TodoCreate) (model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	created := in.Build(s.lastID)

	var first []model.Todo
	if len(s.pages) > 0 {
		first = s.pages[0]
	}
	head := make([]model.Todo, 0, len(first)+1)
	head = append(head, created)
	head = append(head, first...)
	if len(s.pages) == 0 {
		s.pages = [][]model.Todo{head}
	} else {
		s.pages[0] = head
	}
	s.redistribute(triggerAdd)

	return created.Clone(), nil
}

// Remove implements Store.
func (s *PagedStore) Remove(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, i := s.find(id)
	if p < 0 {
		return false, nil
	}
	page := s.pages[p]
	s.pages[p] = append(page[:i:i], page[i+1:]...)
	s.redistribute(triggerRemove)
	return true, nil
}

// Update implements Store.
func (s *PagedStore) Update(_ context.Context, id int64, patch model.TodoPatch) (model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, i := s.find(id)
	if p < 0 {
		return model.Todo{}, ErrNotFound
	}
	s.pages[p][i] = patch.Apply(s.pages[p][i])
	return s.pages[p][i].Clone(), nil
}

// Replace implements Store.
func (s *PagedStore) Replace(_ context.Context, id int64, in model.TodoCreate) (model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, i := s.find(id)
	if p < 0 {
		return model.Todo{}, ErrNotFound
	}
	s.pages[p][i] = in.Build(id)
	return s.pages[p][i].Clone(), nil
}

// Get implements Store.
func (s *PagedStore) Get(_ context.Context, id int64) (model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, i := s.find(id)
	if p < 0 {
		return model.Todo{}, ErrNotFound
	}
	return s.pages[p][i].Clone(), nil
}

// List implements Store.
func (s *PagedStore) List(_ context.Context, pageSize, page int) (PageResult, error) {
	if pageSize < 1 || page < 1 {
		return PageResult{}, ErrInvalidPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pageSize != s.pageSize {
		s.pageSize = pageSize
		s.redistribute(triggerPageSize)
	}

	pageCount := len(s.pages)
	if page > 1 && page > pageCount {
		return PageResult{}, ErrPageNotFound
	}

	todos := []model.Todo{}
	if page <= pageCount {
		todos = make([]model.Todo, len(s.pages[page-1]))
		for i, t := range s.pages[page-1] {
			todos[i] = t.Clone()
		}
	}

	return PageResult{
		Count:       s.count(),
		Page:        page,
		PageSize:    pageSize,
		PageCount:   pageCount,
		HasNext:     page < pageCount,
		HasPrevious: page > 1,
		Todos:       todos,
	}, nil
}

// Count implements Store.
func (s *PagedStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count()
}

// PageSize returns the page size applied by the last redistribution.
func (s *PagedStore) PageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageSize
}

// Pages returns a copy of the current page layout.
func (s *PagedStore) Pages(_ context.Context) [][]model.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]model.Todo, len(s.pages))
	for p, page := range s.pages {
		out[p] = make([]model.Todo, len(page))
		for i, t := range page {
			out[p][i] = t.Clone()
		}
	}
	return out
}

// find returns the page and in-page index of id, or -1, -1.
// Callers must hold mu.
func (s *PagedStore) find(id int64) (int, int) {
	for p, page := range s.pages {
		for i := range page {
			if page[i].ID == id {
				return p, i
			}
		}
	}
	return -1, -1
}

func (s *PagedStore) count() int {
	n := 0
	for _, page := range s.pages {
		n += len(page)
	}
	return n
}

// redistribute flattens the pages and re-chunks them by pageSize.
// Callers must hold mu for writing.
func (s *PagedStore) redistribute(trigger string) {
	start := time.Now()

	flat := make([]model.Todo, 0, s.count())
	for _, page := range s.pages {
		flat = append(flat, page...)
	}

	pages := make([][]model.Todo, 0, (len(flat)+s.pageSize-1)/s.pageSize)
	for lo := 0; lo < len(flat); lo += s.pageSize {
		hi := min(lo+s.pageSize, len(flat))
		chunk := make([]model.Todo, hi-lo)
		copy(chunk, flat[lo:hi])
		pages = append(pages, chunk)
	}
	s.pages = pages

	metrics.RecordRedistribution(trigger, float64(time.Since(start).Microseconds())/1000)
	metrics.UpdateTodosTotal(len(flat))
	metrics.UpdatePagesTotal(len(pages))
}
