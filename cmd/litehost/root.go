package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tomyedwab/litehost/engine"
)

// cfgFile is set by the --config flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "litehost",
	Short: "litehost hosts SQLite databases behind a statement-execution core",
	Long: `litehost opens SQLite databases through the embedded WASM engine and
exposes them as an interactive shell or a script runner. Connection settings
come from flags, LITEHOST_* environment variables, or a YAML config file, in
that order of precedence.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.litehost.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database path (empty or :memory: opens an in-memory database)")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Second, "how long to wait on a locked database")
	rootCmd.PersistentFlags().Bool("readonly", false, "open the database read-only")
	rootCmd.PersistentFlags().StringArray("pragma", nil, "extra pragma to apply at open (repeatable)")

	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("readonly", rootCmd.PersistentFlags().Lookup("readonly"))
	viper.BindPFlag("pragma", rootCmd.PersistentFlags().Lookup("pragma"))

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the YAML config file. A missing default config file is not
// an error; a --config file that cannot be read is.
func loadConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".litehost")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("LITEHOST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// openOptions assembles engine options from the resolved configuration.
func openOptions() engine.Options {
	return engine.Options{
		Path:        viper.GetString("db"),
		ReadOnly:    viper.GetBool("readonly"),
		BusyTimeout: viper.GetDuration("timeout"),
		Pragmas:     viper.GetStringSlice("pragma"),
	}
}

// dsn renders the resolved configuration as a driver DSN for database/sql.
func dsn() string {
	q := url.Values{}
	if viper.GetBool("readonly") {
		q.Set("mode", "ro")
	}
	if d := viper.GetDuration("timeout"); d > 0 {
		q.Set("timeout", d.String())
	}
	for _, p := range viper.GetStringSlice("pragma") {
		q.Add("pragma", p)
	}
	path := viper.GetString("db")
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
