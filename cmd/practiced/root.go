package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-practice/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "practiced",
	Short:         "Practice session engine",
	Long:          "practiced serves practice sessions, spaced-repetition review and mock exams over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads --config plus env and flags, then installs the logger
// as the process default.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(cfg.Log.Logger())
	return cfg, nil
}
