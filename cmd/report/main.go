package main

import (
	"os"

	"github.com/wonny/covid-report/cmd/report/commands"
)

// main is the entry point for the report CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/report [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
