package main

import (
	"os"

	"github.com/pablasso/liftoff/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
