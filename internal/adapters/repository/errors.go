package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("todo not found")
	ErrPageNotFound = errors.New("page does not exist")
	ErrInvalidPage  = errors.New("page and page size must be positive")
)
