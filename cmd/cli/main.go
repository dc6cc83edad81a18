// Package main is the entry point for shortctl.
// The CLI is the developer terminal tool for interacting with the shortforge API.
package main

import (
	"os"

	"shortforge/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
