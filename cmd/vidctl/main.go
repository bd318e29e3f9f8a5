// Package main is the entry point for vidctl, a terminal client for the
// vidrelay service.
package main

import (
	"os"

	"vidrelay/cmd/vidctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
