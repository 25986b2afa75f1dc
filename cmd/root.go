package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "extraction-service",
	Short: "Agent-driven web data extraction service",
	Long:  "Discovers the relevant pages of a target website, extracts structured data from them with Claude, and serves the integrated results over HTTP with live progress streaming.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
