// Package main provides the litehost CLI: an interactive shell and a
// script runner over the litehost SQLite core.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
