// Package main provides the entry point for the codexkeep CLI.
package main

import (
	"os"

	"github.com/codexkeep/codexkeep/cmd/codexkeep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
