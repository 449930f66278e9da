// Package main provides the entry point for the agentd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/agentd-ai/agentd/cmd/agentd/commands"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
