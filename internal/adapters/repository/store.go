// Package repository holds the paginated in-memory todo store.
package repository

import (
	"context"

	"github.com/okian/todos/internal/domain/model"
)

// PageResult is one page of a List call.
type PageResult struct {
	Count       int
	Page        int
	PageSize    int
	PageCount   int
	HasNext     bool
	HasPrevious bool
	Todos       []model.Todo
}

// Store provides read/write access to todos.
type Store interface {
	// Add assigns the next id and puts the todo first in listing order.
	Add(ctx context.Context, in model.TodoCreate) (model.Todo, error)

	// Remove deletes the todo with id. Unknown ids are a no-op and report false.
	Remove(ctx context.Context, id int64) (bool, error)

	// Update merges patch into the todo. Returns ErrNotFound if id is unknown.
	Update(ctx context.Context, id int64, patch model.TodoPatch) (model.Todo, error)

	// Replace overwrites every mutable field. Returns ErrNotFound if id is unknown.
	Replace(ctx context.Context, id int64, in model.TodoCreate) (model.Todo, error)

	// Get returns the todo with id or ErrNotFound.
	Get(ctx context.Context, id int64) (model.Todo, error)

	// List returns page number page (1-based) using pageSize.
	// Page 1 always exists; later pages past the end return ErrPageNotFound.
	List(ctx context.Context, pageSize, page int) (PageResult, error)

	// Count returns the number of todos held.
	Count(ctx context.Context) int
}
