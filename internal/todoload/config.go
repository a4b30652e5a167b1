// Package todoload drives a running todos server with generated traffic and
// checks the paging invariants on what comes back.
package todoload

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid load config")

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumTodos   int           // Number of todos to create
	Workers    int           // Number of concurrent workers
	PageSize   int           // page_size used for the verification walk
	MutateFrac float64       // Fraction of created todos patched and then deleted
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional JSON dump of the created todos
	Verbose    bool          // Log every request
}

// Validate checks the values flags cannot type-check.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.NumTodos < 1:
		return fmt.Errorf("%w: todos must be at least 1", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	case c.PageSize < 1:
		return fmt.Errorf("%w: page size must be at least 1", ErrInvalidConfig)
	case c.MutateFrac < 0 || c.MutateFrac > 1:
		return fmt.Errorf("%w: mutate fraction must be within [0, 1]", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Created       int
	CreateFailed  int
	PagesWalked   int
	Patched       int
	Deleted       int
	InitialCount  int
	FinalCount    int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	CreatePerSec  float64
	VerifyElapsed time.Duration
}
