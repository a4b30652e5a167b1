package todoload

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

var verbs = []string{"buy", "call", "fix", "write", "review", "clean", "book", "plan"}

var objects = []string{"milk", "the plumber", "the fence", "a report", "the PR", "the garage", "flights", "the sprint"}

// generateTodos creates n todos with unique, traceable content.
func generateTodos(n int) []TodoInput {
	todos := make([]TodoInput, n)
	now := time.Now().UTC().Truncate(time.Second)
	for i := range todos {
		todos[i] = generateTodo(now)
	}
	return todos
}

func generateTodo(now time.Time) TodoInput {
	in := TodoInput{
		Content: verbs[rand.IntN(len(verbs))] + " " + objects[rand.IntN(len(objects))] + " [" + uuid.NewString() + "]",
	}
	// about a quarter start completed
	if rand.IntN(4) == 0 {
		done := now.Add(-time.Duration(rand.IntN(72)) * time.Hour)
		in.Completed = true
		in.CompletedDate = &done
	}
	return in
}
