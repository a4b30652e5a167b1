package main

import (
	"os"

	"github.com/okian/todos/internal/todoload"
)

func main() {
	if err := todoload.NewRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("todo-load: " + err.Error() + "\n")
		os.Exit(1)
	}
}
