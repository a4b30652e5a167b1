package todoload

import (
	"errors"
	"fmt"

	"github.com/okian/todos/internal/domain/types"
)

// ErrVerification is wrapped by every invariant violation.
var ErrVerification = errors.New("verification failed")

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrVerification}, args...)...)
}

// verifyPages checks a full walk of GET /todos at one page size:
// every page but the last is full, counts agree, ids strictly decrease
// and links are present exactly where a neighbour page exists.
func verifyPages(pages []types.Page, pageSize int) error {
	if len(pages) == 0 {
		return violation("no pages")
	}

	count := pages[0].Count
	wantPages := (count + pageSize - 1) / pageSize
	if wantPages == 0 {
		wantPages = 1
	}
	if len(pages) != wantPages {
		return violation("walked %d pages, want %d for count %d at page size %d", len(pages), wantPages, count, pageSize)
	}

	var (
		seen   int
		lastID int64
	)
	for i, p := range pages {
		n := i + 1
		if p.Count != count {
			return violation("page %d reports count %d, page 1 reported %d", n, p.Count, count)
		}

		want := pageSize
		if n == wantPages {
			want = count - (wantPages-1)*pageSize
		}
		if len(p.Results) != want {
			return violation("page %d has %d todos, want %d", n, len(p.Results), want)
		}

		if (p.Previous != nil) != (n > 1) {
			return violation("page %d previous link presence is wrong", n)
		}
		if (p.Next != nil) != (n < wantPages) {
			return violation("page %d next link presence is wrong", n)
		}

		for _, todo := range p.Results {
			if seen > 0 && todo.ID >= lastID {
				return violation("id %d after %d breaks newest-first order", todo.ID, lastID)
			}
			lastID = todo.ID
			seen++
		}
	}
	if seen != count {
		return violation("walk returned %d todos, count is %d", seen, count)
	}
	return nil
}

// verifyContains checks that every id in want appears in the walk.
func verifyContains(pages []types.Page, want map[int64]string) error {
	found := make(map[int64]string, len(want))
	for _, p := range pages {
		for _, todo := range p.Results {
			found[todo.ID] = todo.Content
		}
	}
	for id, content := range want {
		got, ok := found[id]
		if !ok {
			return violation("created todo %d missing from listing", id)
		}
		if got != content {
			return violation("todo %d content %q, want %q", id, got, content)
		}
	}
	return nil
}
