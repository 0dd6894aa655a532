package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/premarket/internal/artifacts"
	"github.com/opensource-finance/premarket/internal/cache"
	"github.com/opensource-finance/premarket/internal/config"
	"github.com/opensource-finance/premarket/internal/domain"
	"github.com/opensource-finance/premarket/internal/loader"
	"github.com/opensource-finance/premarket/internal/news"
	"github.com/opensource-finance/premarket/internal/pipeline"
	"github.com/opensource-finance/premarket/internal/repository"
)

// Exit codes for the run subcommand. Schedulers branch on these: an empty
// run is worth a notification, a fetch failure a page.
const (
	exitOK          = 0
	exitEmptyResult = 2
	exitFetchFailed = 3
)

var (
	runDate    string
	runTopN    int
	runWorkers int
	runNoSave  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one screening run and write the artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := executeRun(cmd.Context())
		if err != nil {
			slog.Error("run failed", "error", err)
		}
		if code != exitOK {
			os.Exit(code)
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "run date as YYYY-MM-DD (default: today UTC)")
	runCmd.Flags().IntVar(&runTopN, "top-n", 0, "selection size override (default: strategy top_n)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 8, "concurrent scoring workers")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "skip database persistence")
}

func executeRun(ctx context.Context) (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return 1, err
	}

	strategy, err := config.LoadStrategy(strategyFile)
	if err != nil {
		return 1, err
	}

	date := time.Now().UTC()
	if runDate != "" {
		date, err = time.Parse("2006-01-02", runDate)
		if err != nil {
			return 1, fmt.Errorf("invalid --date %q: %w", runDate, err)
		}
	}

	slog.Info("starting screening run",
		"version", Version,
		"date", date.Format("2006-01-02"),
	)

	var newsSvc *news.Service
	if strategy.News.Enabled {
		cacheImpl, err := cache.New(cfg.Cache)
		if err != nil {
			return 1, fmt.Errorf("initialize cache: %w", err)
		}
		defer cacheImpl.Close()
		newsSvc = news.NewService(cacheImpl, nil, strategy.News)
	}

	p, err := pipeline.New(strategy, newsSvc, runWorkers)
	if err != nil {
		return 1, err
	}

	ldr := loader.NewService(cfg.Loader)
	path, err := ldr.Fetch(ctx, date)
	if err != nil {
		if errors.Is(err, loader.ErrNoCachedCSV) {
			return exitFetchFailed, err
		}
		return 1, err
	}

	records, err := loader.ReadCSVFile(path)
	if err != nil {
		return 1, err
	}

	result, err := p.RunTopN(ctx, records, date, runTopN)
	if err != nil {
		return 1, err
	}

	arts := artifacts.Build(result, p.Config())

	if !runNoSave {
		repo, err := repository.New(cfg.Repository)
		if err != nil {
			return 1, fmt.Errorf("initialize repository: %w", err)
		}
		defer repo.Close()

		if err := repo.SaveRun(ctx, arts); err != nil {
			slog.Error("failed to persist run", "date", arts.Date, "error", err)
		}
	}

	dir, err := artifacts.Write(arts, cfg.OutputDir)
	if err != nil {
		return 1, err
	}

	slog.Info("run complete",
		"date", arts.Date,
		"raw_rows", result.RawRows,
		"qualified", len(result.Qualified),
		"selected", len(result.Selection),
		"artifacts", dir,
	)

	if reason := result.EmptyReason(); reason != domain.EmptyNone {
		slog.Warn("run produced an empty watchlist", "reason", reason)
		return exitEmptyResult, nil
	}

	return exitOK, nil
}
