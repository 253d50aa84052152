package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/susu3304/bidgame/internal/config"
)

// cfg is populated by the root command before any subcommand runs.
var cfg *config.Config

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bidgame",
		Short:         "Number-guessing stake rounds over Discord and HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg)
			return nil
		},
	}

	cmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		gamesCmd(),
	)
	return cmd
}

func setupLogging(c *config.Config) {
	if c.LogFile == "" {
		return
	}
	rotateLogger := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		LocalTime:  true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotateLogger))
}
