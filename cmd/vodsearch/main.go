// Package main provides the entry point for the vodsearch CLI.
package main

import (
	"os"

	"vodsearch/cmd/vodsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
