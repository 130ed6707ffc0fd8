package main

import (
	"os"

	"github.com/victornm/quizmaster/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
