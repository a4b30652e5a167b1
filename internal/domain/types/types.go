// Package types contains response shapes shared by the API and its clients.
package types

import "github.com/okian/todos/internal/domain/model"

// Page is the paginated list response for GET /todos.
type Page struct {
	Count    int          `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []model.Todo `json:"results"`
}
