// Premarket - a premarket stock screener: normalize, score, select.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/premarket/internal/config"
	"github.com/opensource-finance/premarket/internal/domain"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	cfgFile      string
	strategyFile string
)

// rootCmd is the base command for the premarket CLI.
var rootCmd = &cobra.Command{
	Use:   "premarket",
	Short: "Premarket stock screener",
	Long: `premarket turns a raw screener CSV export into a ranked, sector-capped
watchlist. The run subcommand executes one screening run and writes the
artifacts; serve starts the HTTP API and the event-driven worker.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./premarket.yaml or ./config/premarket.yaml)")
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy file (default: built-in strategy)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the infra config and installs the logger it asks for.
func loadConfig() (*domain.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("PREMARKET_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
