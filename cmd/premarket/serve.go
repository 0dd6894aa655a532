package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/premarket/internal/api"
	"github.com/opensource-finance/premarket/internal/bus"
	"github.com/opensource-finance/premarket/internal/cache"
	"github.com/opensource-finance/premarket/internal/config"
	"github.com/opensource-finance/premarket/internal/domain"
	"github.com/opensource-finance/premarket/internal/loader"
	"github.com/opensource-finance/premarket/internal/news"
	"github.com/opensource-finance/premarket/internal/pipeline"
	"github.com/opensource-finance/premarket/internal/repository"
	"github.com/opensource-finance/premarket/internal/worker"
)

var serveWorkers int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the run worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 8, "concurrent scoring workers")
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	strategy, err := config.LoadStrategy(strategyFile)
	if err != nil {
		return err
	}

	slog.Info("starting premarket",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize news service when the strategy asks for the signal
	var newsSvc *news.Service
	if strategy.News.Enabled {
		newsSvc = news.NewService(cacheImpl, nil, strategy.News)
		slog.Info("news signal enabled", "freshness_hours", strategy.News.FreshnessHours)
	}

	// Initialize pipeline
	p, err := pipeline.New(strategy, newsSvc, serveWorkers)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	slog.Info("pipeline initialized", "top_n", strategy.Premarket.TopN)

	// Initialize run worker
	ldr := loader.NewService(cfg.Loader)
	runWorker := worker.NewWorker(busImpl, repo, ldr, p, cfg.OutputDir)
	if err := runWorker.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	slog.Info("run worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			cancel()
		}
	}()

	slog.Info("premarket is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop run worker first
	if err := runWorker.Stop(); err != nil {
		slog.Error("failed to stop run worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("premarket shutdown complete")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  premarket - premarket stock screener")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /runs                   - Request a screening run")
	fmt.Println("    GET  /runs                   - List stored run dates")
	fmt.Println("    GET  /runs/latest            - Latest run summary")
	fmt.Println("    GET  /runs/{date}/summary    - Run summary")
	fmt.Println("    GET  /runs/{date}/topn       - Ranked top-N")
	fmt.Println("    GET  /runs/{date}/watchlist  - Compact watchlist")
	fmt.Println("    GET  /runs/{date}/full       - Full screened table")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
