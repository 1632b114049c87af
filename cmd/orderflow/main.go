package main

import (
	"os"

	"github.com/gdev-ltda/orderflow/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
