package main

import (
	"os"

	"github.com/wonny/tradebook/cmd/tradebook/commands"
)

// main is the entry point for the tradebook CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/tradebook [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
