package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/okian/todos/internal/domain/model"
)

func seeded(b *testing.B, n int) *PagedStore {
	b.Helper()
	ctx := context.Background()
	s := NewPagedStore()
	for i := 0; i < n; i++ {
		if _, err := s.Add(ctx, model.TodoCreate{Content: "bench"}); err != nil {
			b.Fatal(err)
		}
	}
	return s
}

func BenchmarkPagedStore_Add(b *testing.B) {
	for _, n := range []int{100, 1_000, 10_000} {
		b.Run(fmt.Sprintf("size=%d", n), func(b *testing.B) {
			s := seeded(b, n)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = s.Add(ctx, model.TodoCreate{Content: "bench"})
			}
		})
	}
}

func BenchmarkPagedStore_Get(b *testing.B) {
	s := seeded(b, 10_000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Get(ctx, int64(i%10_000)+1)
	}
}

func BenchmarkPagedStore_ListAlternatingSize(b *testing.B) {
	s := seeded(b, 10_000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.List(ctx, 10+i%2, 1)
	}
}
