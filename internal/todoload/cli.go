package todoload

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/todos/pkg/logger"
	"github.com/spf13/cobra"
)

// Default flag values.
const (
	defaultBaseURL    = "http://localhost:3000"
	defaultNumTodos   = 1000
	defaultPageSize   = 25
	defaultMutateFrac = 0.1
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

// RootOptions holds global flags.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed log formats.
var ValidFormats = []string{logger.FormatText, logger.FormatJSON}

// NewRootCommand creates the todo-load command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cfg := &Config{}
	var runTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "todo-load",
		Short: "Load and verify a running todos server",
		Long: `Create todos concurrently against a running todos server, walk every
page of GET /todos and check the paging invariants, then patch and delete a
sample and walk again at a different page size.

The server must not receive other writes during the run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := logger.Init(logger.WithFormat(opts.Format), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if opts.Verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Verbose = opts.Verbose

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			stats, err := Run(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d created, %d patched, %d deleted, %d pages walked in %s\n",
				stats.Created, stats.Patched, stats.Deleted, stats.PagesWalked, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", logger.FormatText, "log format (json|text)")

	f := cmd.Flags()
	f.StringVarP(&cfg.BaseURL, "url", "u", defaultBaseURL, "base URL of the service")
	f.IntVarP(&cfg.NumTodos, "todos", "n", defaultNumTodos, "number of todos to create")
	f.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*2, "number of concurrent workers")
	f.IntVar(&cfg.PageSize, "page-size", defaultPageSize, "page_size used to walk the listing")
	f.Float64Var(&cfg.MutateFrac, "mutate", defaultMutateFrac, "fraction of created todos to patch and delete")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "timeout for the whole run")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "write the created todos to this JSON file")

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
