// Package dedupe remembers the todo created for an idempotency key so that a
// retried POST returns the original todo instead of creating a second one.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/todos/internal/domain/model"
)

// CreateFunc creates the todo for a key that has not been seen.
type CreateFunc func(ctx context.Context) (model.Todo, error)

// Deduper records idempotency keys and the todos created for them.
type Deduper interface {
	// Do returns the todo recorded for key with replayed=true, or runs create
	// and records its result. A failed create records nothing. Calls for the
	// same key are serialized so create runs at most once per recorded key.
	Do(ctx context.Context, key string, create CreateFunc) (todo model.Todo, replayed bool, err error)

	// Forget removes key so the next Do runs create again.
	Forget(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key  string
	todo model.Todo
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest first.
// For bounded mode (maxSize > 0) the oldest key is evicted once full.
// For unbounded mode (maxSize <= 0) nothing is evicted.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Do(ctx context.Context, key string, create CreateFunc) (model.Todo, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		return el.Value.(*entry).todo.Clone(), true, nil
	}

	todo, err := create(ctx)
	if err != nil {
		return model.Todo{}, false, err
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(&entry{key: key, todo: todo.Clone()})
	d.size.Add(1)
	return todo, false, nil
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(*entry).key)
	d.size.Add(-1)
}

// Size returns the current number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
