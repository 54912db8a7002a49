// Package main provides the entry point for the ragmcp CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/Aman-CERP/ragmcp/cmd/ragmcp/cmd"
)

func main() {
	// Optional .env for OPENAI_API_KEY and RAGMCP_* overrides.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
