// Package model contains domain models passed between layers.
package model

import "time"

// Todo is a single item held by the store.
type Todo struct {
	ID            int64      `json:"id"`
	Content       string     `json:"content"`
	Completed     bool       `json:"completed"`
	CompletedDate *time.Time `json:"completedDate"`
}

// Clone returns a deep copy so callers never share state with the store.
func (t Todo) Clone() Todo {
	if t.CompletedDate != nil {
		d := *t.CompletedDate
		t.CompletedDate = &d
	}
	return t
}

// TodoCreate carries the fields of a new or fully replaced todo.
type TodoCreate struct {
	Content       string
	Completed     bool
	CompletedDate *time.Time
}

// Build returns the todo identified by id with the create fields.
func (c TodoCreate) Build(id int64) Todo {
	return Todo{
		ID:            id,
		Content:       c.Content,
		Completed:     c.Completed,
		CompletedDate: c.CompletedDate,
	}.Clone()
}

// TodoPatch is a partial update. Nil fields are left unchanged.
type TodoPatch struct {
	Content       *string
	Completed     *bool
	CompletedDate *time.Time
	// ClearCompletedDate resets CompletedDate to null and wins over CompletedDate.
	ClearCompletedDate bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Content == nil && p.Completed == nil && p.CompletedDate == nil && !p.ClearCompletedDate
}

// Apply merges the patch into t and returns the result.
func (p TodoPatch) Apply(t Todo) Todo {
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	switch {
	case p.ClearCompletedDate:
		t.CompletedDate = nil
	case p.CompletedDate != nil:
		d := *p.CompletedDate
		t.CompletedDate = &d
	}
	return t
}
