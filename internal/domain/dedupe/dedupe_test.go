package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/todos/internal/domain/dedupe"
	"github.com/okian/todos/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// counter returns a CreateFunc that hands out increasing ids.
func counter() (dedupe.CreateFunc, *atomic.Int64) {
	var n atomic.Int64
	return func(context.Context) (model.Todo, error) {
		id := n.Add(1)
		return model.Todo{ID: id, Content: fmt.Sprintf("todo %d", id)}, nil
	}, &n
}

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should be empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a key is used for the first time", func() {
			d := dedupe.NewInMemoryDeduper()
			create, calls := counter()
			todo, replayed, err := d.Do(ctx, "key-1", create)

			Convey("Then create runs and the result is recorded", func() {
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
				So(todo.ID, ShouldEqual, 1)
				So(calls.Load(), ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry with the same key replays the first todo", func() {
				again, replayed, err := d.Do(ctx, "key-1", create)
				So(err, ShouldBeNil)
				So(replayed, ShouldBeTrue)
				So(again, ShouldResemble, todo)
				So(calls.Load(), ShouldEqual, 1)
			})

			Convey("And a different key creates a new todo", func() {
				other, replayed, _ := d.Do(ctx, "key-2", create)
				So(replayed, ShouldBeFalse)
				So(other.ID, ShouldEqual, 2)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("And a forgotten key creates again", func() {
				d.Forget(ctx, "key-1")
				So(d.Size(), ShouldEqual, 0)

				again, replayed, _ := d.Do(ctx, "key-1", create)
				So(replayed, ShouldBeFalse)
				So(again.ID, ShouldEqual, 2)
			})

			Convey("And forgetting an unknown key is a no-op", func() {
				d.Forget(ctx, "missing")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When create fails", func() {
			d := dedupe.NewInMemoryDeduper()
			boom := errors.New("boom")
			_, _, err := d.Do(ctx, "key-1", func(context.Context) (model.Todo, error) {
				return model.Todo{}, boom
			})

			Convey("Then the error is returned and nothing is recorded", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 0)

				create, _ := counter()
				_, replayed, err := d.Do(ctx, "key-1", create)
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
			})
		})

		Convey("When the recorded todo is mutated by the caller", func() {
			d := dedupe.NewInMemoryDeduper()
			create, _ := counter()
			todo, _, _ := d.Do(ctx, "key-1", create)
			todo.Content = "changed"

			Convey("Then the replay is unaffected", func() {
				again, _, _ := d.Do(ctx, "key-1", create)
				So(again.Content, ShouldEqual, "todo 1")
			})
		})
	})
}

func TestInMemoryDeduper_Bounded(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deduper bounded to three keys", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		create, calls := counter()
		for i := 1; i <= 4; i++ {
			_, _, _ = d.Do(ctx, fmt.Sprintf("key-%d", i), create)
		}

		Convey("Then the oldest key is evicted", func() {
			So(d.Size(), ShouldEqual, 3)

			_, replayed, _ := d.Do(ctx, "key-4", create)
			So(replayed, ShouldBeTrue)

			_, replayed, _ = d.Do(ctx, "key-1", create)
			So(replayed, ShouldBeFalse)
			So(calls.Load(), ShouldEqual, 5)
			So(d.Size(), ShouldEqual, 3)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		create, _ := counter()
		for i := 0; i < 100; i++ {
			_, _, _ = d.Do(ctx, fmt.Sprintf("key-%d", i), create)
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

func TestInMemoryDeduper_Concurrent(t *testing.T) {
	ctx := context.Background()

	Convey("Given many goroutines retrying the same key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		create, calls := counter()

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = map[int64]int{}
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				todo, _, err := d.Do(ctx, "same", create)
				if err != nil {
					return
				}
				mu.Lock()
				ids[todo.ID]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		Convey("Then create ran once and every caller saw the same todo", func() {
			So(calls.Load(), ShouldEqual, 1)
			So(len(ids), ShouldEqual, 1)
			So(ids[1], ShouldEqual, 50)
		})
	})
}
