// Package main is the entry point for hackerterm, a shell rendered one
// character at a time in green on black.
package main

import (
	"os"

	"github.com/Dicklesworthstone/hackerterm/cmd/hackerterm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
