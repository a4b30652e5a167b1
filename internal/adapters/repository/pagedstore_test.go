package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/okian/todos/internal/domain/model"
)

func addN(t *testing.T, s *PagedStore, n int) []model.Todo {
	t.Helper()
	ctx := context.Background()
	out := make([]model.Todo, 0, n)
	for i := 0; i < n; i++ {
		td, err := s.Add(ctx, model.TodoCreate{Content: fmt.Sprintf("todo %d", i+1)})
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		out = append(out, td)
	}
	return out
}

// checkLayout asserts the page invariants and returns the flattened ids.
func checkLayout(t *testing.T, s *PagedStore) []int64 {
	t.Helper()
	pages := s.Pages(context.Background())
	size := s.PageSize()

	var ids []int64
	for p, page := range pages {
		if len(page) == 0 {
			t.Fatalf("page %d is empty", p+1)
		}
		if p < len(pages)-1 && len(page) != size {
			t.Fatalf("page %d has %d todos, want %d", p+1, len(page), size)
		}
		if len(page) > size {
			t.Fatalf("page %d has %d todos, more than %d", p+1, len(page), size)
		}
		for _, td := range page {
			ids = append(ids, td.ID)
		}
	}
	return ids
}

func TestPagedStore_Example(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()

	milk, _ := s.Add(ctx, model.TodoCreate{Content: "buy milk"})
	dog, _ := s.Add(ctx, model.TodoCreate{Content: "walk dog"})
	if milk.ID != 1 || dog.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", milk.ID, dog.ID)
	}

	res, err := s.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 2 || len(res.Todos) != 2 {
		t.Fatalf("expected 2 todos, got count=%d len=%d", res.Count, len(res.Todos))
	}
	if res.Todos[0].ID != 2 || res.Todos[1].ID != 1 {
		t.Errorf("expected order [2 1], got [%d %d]", res.Todos[0].ID, res.Todos[1].ID)
	}
	if res.HasNext || res.HasPrevious {
		t.Errorf("expected no neighbours, got next=%v previous=%v", res.HasNext, res.HasPrevious)
	}

	removed, err := s.Remove(ctx, 2)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	res, err = s.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 1 || len(res.Todos) != 1 || res.Todos[0].ID != 1 {
		t.Errorf("expected only todo 1 left, got %+v", res)
	}
}

func TestPagedStore_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()

	var last int64
	for round := 0; round < 20; round++ {
		td, err := s.Add(ctx, model.TodoCreate{Content: "x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if td.ID <= last {
			t.Fatalf("id %d not greater than previous %d", td.ID, last)
		}
		last = td.ID
		if round%3 == 0 {
			if _, err := s.Remove(ctx, td.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}

	// removing the newest todo must not hand its id out again
	newest, _ := s.Add(ctx, model.TodoCreate{Content: "y"})
	_, _ = s.Remove(ctx, newest.ID)
	again, _ := s.Add(ctx, model.TodoCreate{Content: "z"})
	if again.ID != newest.ID+1 {
		t.Errorf("expected id %d, got %d", newest.ID+1, again.ID)
	}
}

func TestPagedStore_NewestFirstAcrossPages(t *testing.T) {
	s := NewPagedStore(WithPageSize(3))
	addN(t, s, 10)

	ids := checkLayout(t, s)
	if len(ids) != 10 {
		t.Fatalf("expected 10 ids, got %d", len(ids))
	}
	for i, id := range ids {
		if want := int64(10 - i); id != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, id)
		}
	}
	if n := len(s.Pages(context.Background())); n != 4 {
		t.Errorf("expected 4 pages, got %d", n)
	}
}

func TestPagedStore_PageCount(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct{ k, n int }{{0, 5}, {1, 5}, {5, 5}, {6, 5}, {11, 3}, {7, 1}, {7, 100}} {
		t.Run(fmt.Sprintf("k=%d,n=%d", tc.k, tc.n), func(t *testing.T) {
			s := NewPagedStore()
			addN(t, s, tc.k)

			res, err := s.List(ctx, tc.n, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := (tc.k + tc.n - 1) / tc.n
			if res.PageCount != want {
				t.Errorf("expected %d pages, got %d", want, res.PageCount)
			}
			if res.Count != tc.k {
				t.Errorf("expected count %d, got %d", tc.k, res.Count)
			}
			checkLayout(t, s)
		})
	}
}

func TestPagedStore_ListLinksAndBounds(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()
	addN(t, s, 5)

	first, err := s.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.HasNext || first.HasPrevious {
		t.Errorf("page 1: expected next only, got next=%v previous=%v", first.HasNext, first.HasPrevious)
	}

	middle, _ := s.List(ctx, 2, 2)
	if !middle.HasNext || !middle.HasPrevious {
		t.Errorf("page 2: expected both links, got next=%v previous=%v", middle.HasNext, middle.HasPrevious)
	}

	last, _ := s.List(ctx, 2, 3)
	if last.HasNext || !last.HasPrevious {
		t.Errorf("page 3: expected previous only, got next=%v previous=%v", last.HasNext, last.HasPrevious)
	}
	if len(last.Todos) != 1 || last.Todos[0].ID != 1 {
		t.Errorf("page 3: expected only todo 1, got %+v", last.Todos)
	}

	if _, err := s.List(ctx, 2, 4); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("page 4: expected ErrPageNotFound, got %v", err)
	}
	if _, err := s.List(ctx, 0, 1); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("size 0: expected ErrInvalidPage, got %v", err)
	}
	if _, err := s.List(ctx, 2, 0); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("page 0: expected ErrInvalidPage, got %v", err)
	}
}

func TestPagedStore_EmptyFirstPage(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()

	res, err := s.List(ctx, 10, 1)
	if err != nil {
		t.Fatalf("page 1 of an empty store must be valid, got %v", err)
	}
	if res.Count != 0 || res.Todos == nil || len(res.Todos) != 0 {
		t.Errorf("expected empty non-nil results, got %+v", res)
	}
	if res.HasNext || res.HasPrevious {
		t.Errorf("expected no links on empty store")
	}
	if _, err := s.List(ctx, 10, 2); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound for page 2, got %v", err)
	}
}

func TestPagedStore_PageSizeChangeRedistributes(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore(WithPageSize(4))
	addN(t, s, 9)

	if _, err := s.List(ctx, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PageSize() != 2 {
		t.Fatalf("expected page size 2, got %d", s.PageSize())
	}
	if n := len(s.Pages(ctx)); n != 5 {
		t.Errorf("expected 5 pages, got %d", n)
	}
	ids := checkLayout(t, s)
	for i, id := range ids {
		if want := int64(9 - i); id != want {
			t.Fatalf("order broken at %d: got %d want %d", i, id, want)
		}
	}
}

func TestPagedStore_RemoveKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore(WithPageSize(3))
	addN(t, s, 8)

	for _, id := range []int64{5, 8, 1} {
		removed, err := s.Remove(ctx, id)
		if err != nil || !removed {
			t.Fatalf("remove %d: %v %v", id, removed, err)
		}
	}
	ids := checkLayout(t, s)
	want := []int64{7, 6, 4, 3, 2}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, ids)
	}

	removed, err := s.Remove(ctx, 42)
	if err != nil || removed {
		t.Errorf("unknown id should be a no-op, got %v %v", removed, err)
	}
	if s.Count(ctx) != 5 {
		t.Errorf("expected count 5, got %d", s.Count(ctx))
	}
}

func TestPagedStore_GetAfterRemove(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()
	todos := addN(t, s, 3)

	got, err := s.Get(ctx, todos[1].ID)
	if err != nil || got.Content != "todo 2" {
		t.Fatalf("expected todo 2, got %+v %v", got, err)
	}

	_, _ = s.Remove(ctx, todos[1].ID)
	if _, err := s.Get(ctx, todos[1].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestPagedStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore(WithPageSize(2))
	addN(t, s, 5)

	done := true
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := s.Update(ctx, 1, model.TodoPatch{Completed: &done, CompletedDate: &now})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Completed || got.Content != "todo 1" || got.CompletedDate == nil || !got.CompletedDate.Equal(now) {
		t.Errorf("unexpected merge result %+v", got)
	}

	stored, _ := s.Get(ctx, 1)
	if !stored.Completed {
		t.Errorf("update was not persisted")
	}

	before := s.Pages(ctx)
	content := "ghost"
	if _, err := s.Update(ctx, 99, model.TodoPatch{Content: &content}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if fmt.Sprint(before) != fmt.Sprint(s.Pages(ctx)) {
		t.Errorf("failed update mutated the store")
	}
}

func TestPagedStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()
	addN(t, s, 3)
	_, _ = s.Update(ctx, 2, model.TodoPatch{Completed: ptr(true)})

	got, err := s.Replace(ctx, 2, model.TodoCreate{Content: "rewritten"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 2 || got.Content != "rewritten" || got.Completed {
		t.Errorf("unexpected replace result %+v", got)
	}
	ids := checkLayout(t, s)
	if fmt.Sprint(ids) != "[3 2 1]" {
		t.Errorf("replace moved the todo: %v", ids)
	}

	if _, err := s.Replace(ctx, 7, model.TodoCreate{Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPagedStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()
	addN(t, s, 2)

	res, _ := s.List(ctx, 10, 1)
	res.Todos[0].Content = "tampered"

	got, _ := s.Get(ctx, res.Todos[0].ID)
	if got.Content == "tampered" {
		t.Errorf("list result shares memory with the store")
	}
}

func TestPagedStore_RandomOperations(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	s := NewPagedStore()

	// reference model, newest first
	var ref []int64
	for step := 0; step < 500; step++ {
		switch op := rng.Intn(4); {
		case op < 2:
			td, _ := s.Add(ctx, model.TodoCreate{Content: "r"})
			ref = append([]int64{td.ID}, ref...)
		case op == 2 && len(ref) > 0:
			i := rng.Intn(len(ref))
			_, _ = s.Remove(ctx, ref[i])
			ref = append(ref[:i], ref[i+1:]...)
		default:
			if _, err := s.List(ctx, 1+rng.Intn(7), 1); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		ids := checkLayout(t, s)
		if fmt.Sprint(ids) != fmt.Sprint(ref) && !(len(ids) == 0 && len(ref) == 0) {
			t.Fatalf("step %d: store %v, reference %v", step, ids, ref)
		}
	}
}

func TestPagedStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewPagedStore()

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				td, _ := s.Add(ctx, model.TodoCreate{Content: "c"})
				_, _ = s.List(ctx, 1+i%5, 1)
				_, _ = s.Get(ctx, td.ID)
			}
		}()
	}
	wg.Wait()

	if n := s.Count(ctx); n != workers*perWorker {
		t.Fatalf("expected %d todos, got %d", workers*perWorker, n)
	}
	seen := make(map[int64]bool)
	for _, id := range checkLayout(t, s) {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func ptr[T any](v T) *T { return &v }
