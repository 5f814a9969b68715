// Package main is the entry point for the wirewarden-agent binary.
package main

import (
	"os"

	"github.com/wirewarden/wirewarden/cmd/wirewarden-agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
