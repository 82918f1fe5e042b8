package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lyrics-sync/internal/app"
	"lyrics-sync/internal/config"
	"lyrics-sync/internal/logging"
	"lyrics-sync/internal/session"
)

var (
	// global flags
	configPath string
	logLevel   string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "lyrics-sync",
	Short: "synchronized LRC lyrics for the desktop",
	Long: `lyrics-sync follows an audio source and keeps the active line of an LRC
file in sync with it, publishing the line to a unix socket, i3blocks and redis.

when run without a subcommand, it starts the daemon.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(configPath)
		if cmd.Flags().Changed("log-level") {
			cfg.App.LogLevel = logLevel
		}
		logging.SetLevel(cfg.App.LogLevel)

		application = app.New(cfg)
		cmd.SetContext(session.NewContext(cmd.Context(), application.Session()))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyrics-sync/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
