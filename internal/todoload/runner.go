package todoload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/todos/internal/domain/model"
	"github.com/okian/todos/internal/domain/types"
	"github.com/okian/todos/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete load run against cfg.BaseURL.
//
// Counts are compared against the count observed before the run, so the
// server must not receive other writes while Run is in progress.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Named("todoload")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting todo load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("todos", cfg.NumTodos),
		logger.Int("workers", cfg.Workers),
		logger.Int("pageSize", cfg.PageSize),
		logger.Float64("mutateFrac", cfg.MutateFrac),
		logger.Duration("timeout", cfg.Timeout))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	first, err := client.List(ctx, 1, cfg.PageSize)
	if err != nil {
		return stats, fmt.Errorf("initial listing failed: %w", err)
	}
	stats.InitialCount = first.Count

	// Step 2: Create todos concurrently
	inputs := generateTodos(cfg.NumTodos)
	created := createTodos(ctx, client, cfg, inputs, stats)
	if stats.CreateFailed > 0 {
		return stats, fmt.Errorf("%d of %d creates failed", stats.CreateFailed, cfg.NumTodos)
	}

	// Step 3: Walk every page and check the invariants
	verifyStart := time.Now()
	pages, err := walk(ctx, client, cfg.PageSize)
	if err != nil {
		return stats, err
	}
	stats.PagesWalked = len(pages)
	if err := verifyPages(pages, cfg.PageSize); err != nil {
		return stats, err
	}
	if got, want := pages[0].Count, stats.InitialCount+len(created); got != want {
		return stats, violation("count %d after creates, want %d", got, want)
	}
	want := make(map[int64]string, len(created))
	for _, todo := range created {
		want[todo.ID] = todo.Content
	}
	if err := verifyContains(pages, want); err != nil {
		return stats, err
	}
	stats.VerifyElapsed = time.Since(verifyStart)

	if err := verifyReplay(ctx, client, cfg.PageSize); err != nil {
		return stats, err
	}

	// Step 4: Patch then delete a sample
	if err := mutate(ctx, client, cfg, created, stats); err != nil {
		return stats, err
	}

	// Step 5: Walk again at a different page size to force a redistribution
	altSize := cfg.PageSize + 1
	pages, err = walk(ctx, client, altSize)
	if err != nil {
		return stats, err
	}
	if err := verifyPages(pages, altSize); err != nil {
		return stats, err
	}
	stats.FinalCount = pages[0].Count
	if want := stats.InitialCount + stats.Created - stats.Deleted; stats.FinalCount != want {
		return stats, violation("final count %d, want %d", stats.FinalCount, want)
	}

	// Step 6: Save created todos to file
	if cfg.OutputFile != "" {
		if err := saveTodos(cfg.OutputFile, created); err != nil {
			log.Warn(ctx, "failed to save todos to file", logger.Error(err))
		} else {
			log.Info(ctx, "todos saved to file", logger.String("filename", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// createTodos submits inputs with cfg.Workers workers and returns the created todos.
func createTodos(ctx context.Context, client *Client, cfg *Config, inputs []TodoInput, stats *Stats) []model.Todo {
	log := logger.Named("todoload")
	start := time.Now()

	var (
		mu      sync.Mutex
		created = make([]model.Todo, 0, len(inputs))
		wg      sync.WaitGroup
	)

	jobs := make(chan keyedInput, cfg.Workers*2)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				todo, _, err := client.CreateOnce(ctx, job.key, job.in)
				if err != nil {
					log.Warn(ctx, "create failed", logger.Error(err))
					continue
				}
				if cfg.Verbose {
					log.Debug(ctx, "todo created", logger.Int64("id", todo.ID))
				}
				mu.Lock()
				created = append(created, todo)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, in := range inputs {
			select {
			case <-ctx.Done():
				return
			case jobs <- keyedInput{key: uuid.NewString(), in: in}:
			}
		}
	}()
	wg.Wait()

	stats.Created = len(created)
	stats.CreateFailed = len(inputs) - len(created)
	if elapsed := time.Since(start); elapsed > 0 {
		stats.CreatePerSec = float64(len(created)) / elapsed.Seconds()
	}
	log.Info(ctx, "creates completed",
		logger.Int("created", stats.Created),
		logger.Int("failed", stats.CreateFailed),
		logger.Float64("perSecond", stats.CreatePerSec))
	return created
}

type keyedInput struct {
	key string
	in  TodoInput
}

// verifyReplay retries one create with a used key and checks nothing new is stored.
func verifyReplay(ctx context.Context, client *Client, pageSize int) error {
	key := uuid.NewString()
	in := generateTodo(time.Now().UTC())

	first, replayed, err := client.CreateOnce(ctx, key, in)
	if err != nil {
		return fmt.Errorf("keyed create: %w", err)
	}
	if replayed {
		return violation("fresh key %s reported as replayed", key)
	}
	before, err := client.List(ctx, 1, pageSize)
	if err != nil {
		return err
	}

	again, replayed, err := client.CreateOnce(ctx, key, in)
	if err != nil {
		return fmt.Errorf("keyed retry: %w", err)
	}
	if !replayed || again.ID != first.ID {
		return violation("retry with key %s created todo %d, want replay of %d", key, again.ID, first.ID)
	}
	after, err := client.List(ctx, 1, pageSize)
	if err != nil {
		return err
	}
	if after.Count != before.Count {
		return violation("retry with key %s changed count from %d to %d", key, before.Count, after.Count)
	}

	if err := client.Delete(ctx, first.ID); err != nil {
		return fmt.Errorf("cleaning up replay todo: %w", err)
	}
	return nil
}

// walk fetches every page at pageSize, following next links until none remain.
func walk(ctx context.Context, client *Client, pageSize int) ([]types.Page, error) {
	var pages []types.Page
	for n := 1; ; n++ {
		p, err := client.List(ctx, n, pageSize)
		if err != nil {
			return pages, fmt.Errorf("listing page %d: %w", n, err)
		}
		pages = append(pages, p)
		if p.Next == nil {
			break
		}
	}

	// one past the end must not exist
	_, err := client.List(ctx, len(pages)+1, pageSize)
	var se *StatusError
	switch {
	case err == nil:
		return pages, violation("page %d past the end exists", len(pages)+1)
	case !errors.As(err, &se) || se.Code != http.StatusNotFound:
		return pages, fmt.Errorf("listing past the end: %w", err)
	}
	return pages, nil
}

// mutate patches a sample of created todos, checks the patch with GET, then
// deletes them and checks they are gone.
func mutate(ctx context.Context, client *Client, cfg *Config, created []model.Todo, stats *Stats) error {
	n := int(float64(len(created)) * cfg.MutateFrac)
	if n == 0 {
		return nil
	}
	sample := created[:n]

	for _, todo := range sample {
		done := !todo.Completed
		fields := map[string]any{"completed": done, "completedDate": nil}
		if done {
			fields["completedDate"] = time.Now().UTC().Format(time.RFC3339)
		}
		patched, err := client.Patch(ctx, todo.ID, fields)
		if err != nil {
			return fmt.Errorf("patching todo %d: %w", todo.ID, err)
		}
		got, err := client.Get(ctx, todo.ID)
		if err != nil {
			return fmt.Errorf("reading todo %d: %w", todo.ID, err)
		}
		if got.Completed != done || (got.CompletedDate == nil) == done || got.Content != todo.Content {
			return violation("todo %d after patch is %+v", todo.ID, got)
		}
		if patched.ID != todo.ID {
			return violation("patch of %d returned id %d", todo.ID, patched.ID)
		}
		stats.Patched++
	}

	for _, todo := range sample {
		if err := client.Delete(ctx, todo.ID); err != nil {
			return fmt.Errorf("deleting todo %d: %w", todo.ID, err)
		}
		stats.Deleted++

		var se *StatusError
		if _, err := client.Get(ctx, todo.ID); !errors.As(err, &se) || se.Code != http.StatusNotFound {
			return violation("todo %d still readable after delete", todo.ID)
		}
	}
	return nil
}

func saveTodos(filename string, todos []model.Todo) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(todos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal todos: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("initialCount", stats.InitialCount),
		logger.Int("created", stats.Created),
		logger.Int("patched", stats.Patched),
		logger.Int("deleted", stats.Deleted),
		logger.Int("finalCount", stats.FinalCount),
		logger.Int("pagesWalked", stats.PagesWalked),
		logger.Duration("verifyElapsed", stats.VerifyElapsed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("createsPerSecond", stats.CreatePerSec))
}
