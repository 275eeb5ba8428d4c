package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/litehost/adapter"
	"github.com/tomyedwab/litehost/database"
	"github.com/tomyedwab/litehost/engine"
)

var execCmd = &cobra.Command{
	Use:   "exec <script.sql>",
	Short: "Run a SQL script file against the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		eng := engine.New()
		defer eng.Shutdown()

		db, err := database.Open(eng, openOptions())
		if err != nil {
			return err
		}
		ad := adapter.New(db, adapter.DefaultCapabilities())
		defer ad.Dispose(context.Background())

		if err := ad.ExecuteScript(cmd.Context(), string(script)); err != nil {
			return err
		}
		fmt.Printf("applied %s\n", args[0])
		return nil
	},
}
