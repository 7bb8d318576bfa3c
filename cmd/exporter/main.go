package main

import (
	"os"
)

// main boots the CLI: config → logging → subcommand (run, serve, position).
func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
