package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/iapd-pipeline/internal/config"
)

// Exit codes (spec.md §6): 0 success, 1 configuration invalid, 2 feed
// unavailable, 3 fatal I/O error. Other codes are reserved.
const (
	exitOK            = 0
	exitConfiguration = 1
	exitFeedUnavail   = 2
	exitFatalIO       = 3
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "iapd",
	Short: "IAPD brochure intelligence pipeline",
	Long:  "Acquires the daily SEC IAPD firm feed, catalogs and downloads Form ADV brochures, classifies their content, and merges everything into a single CSV output.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			cfg.Verbose = true
			cfg.Log.Format = "console"
			cfg.Log.Level = "debug"
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config.yaml (default ./config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "console logging at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}
