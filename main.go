package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/config"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "yachay",
	Short: "Quechua vocabulary bot",
	Long:  "Telegram bot that turns photos into quechua words and drills them with star-based mastery tracking.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		l, err := config.InitLogger(cfg.Log)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(runCmd, migrateCmd, seedCmd, importCmd, vocabCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
