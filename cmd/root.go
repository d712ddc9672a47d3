package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "skiclusterd",
	Short: "Ski area clustering engine",
	Long:  "Groups lifts and runs into ski areas from crowdsourced and registry geometry, merging cross-source duplicates and synthesizing new ski areas for orphaned runs.",
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
