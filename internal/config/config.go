// Package config defines service configuration and its loader.
//
// Conventions:
// - New returns a Config holding the defaults.
// - Load layers defaults, an optional YAML file and TODOS_ env vars.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import "fmt"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// PublicURL prefixes pagination links. Empty means links are relative.
	PublicURL string `koanf:"public_url"`

	// DefaultPageSize is used when GET /todos has no page_size.
	DefaultPageSize int `koanf:"default_page_size"`

	// MaxPageSize caps GET /todos?page_size.
	MaxPageSize int `koanf:"max_page_size"`

	// IdempotencyKeys bounds the remembered Idempotency-Key values. 0 keeps all of them.
	IdempotencyKeys int `koanf:"idempotency_keys"`

	// CORSAllowedOrigin is sent as Access-Control-Allow-Origin.
	CORSAllowedOrigin string `koanf:"cors_allowed_origin"`

	// HTTP server timeouts in milliseconds.
	ReadTimeoutMS     int `koanf:"read_timeout_ms"`
	WriteTimeoutMS    int `koanf:"write_timeout_ms"`
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":3000",
		DefaultPageSize:   25,
		MaxPageSize:       100,
		IdempotencyKeys:   10_000,
		CORSAllowedOrigin: "*",
		ReadTimeoutMS:     10_000,
		WriteTimeoutMS:    10_000,
		ShutdownTimeoutMS: 30_000,
	}
}

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DefaultPageSize < 1:
		return fmt.Errorf("%w: default_page_size must be at least 1", ErrInvalidConfig)
	case c.MaxPageSize < c.DefaultPageSize:
		return fmt.Errorf("%w: max_page_size must not be below default_page_size", ErrInvalidConfig)
	case c.IdempotencyKeys < 0:
		return fmt.Errorf("%w: idempotency_keys must not be negative", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}
