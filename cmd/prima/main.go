// Package main is the entry point for the prima CLI.
package main

import (
	"os"

	"github.com/hunterdeturk/PRIMA/cmd/prima/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
