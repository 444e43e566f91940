package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/larder/internal/config"
	"github.com/lazypower/larder/internal/store"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "larder",
	Short: "Perishable order storage simulator",
	Long: "Larder places perishable orders into temperature-controlled storage, " +
		"moves and discards them as space runs out, and keeps an auditable ledger of every action.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with LARDER_* overrides")
	rootCmd.PersistentFlags().String("db", "", "run archive path (default ~/.larder/larder.db)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig loads configuration and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		cfg.Database.Path = f.Value.String()
	}
	return cfg, nil
}

// openArchive opens the configured run archive.
func openArchive(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
