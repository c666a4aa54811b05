// Package main provides the anyset command.
package main

import (
	"os"

	"github.com/leapstack-labs/anyset/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
