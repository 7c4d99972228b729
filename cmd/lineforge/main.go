// Package main provides the lineforge CLI.
package main

import (
	"os"

	"github.com/lineforge/lineforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
