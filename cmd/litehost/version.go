package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time; "dev" marks a source build.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the litehost version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("litehost", Version)
	},
}
