package main

import (
	"os"

	"github.com/trobrock/trading-algo/cmd/algo/commands"
)

// main is the entry point of the algo CLI
// ⭐ single CLI entry point: go run ./cmd/algo [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
