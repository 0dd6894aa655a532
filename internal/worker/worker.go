// Package worker runs screening jobs triggered over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/premarket/internal/artifacts"
	"github.com/opensource-finance/premarket/internal/domain"
	"github.com/opensource-finance/premarket/internal/loader"
	"github.com/opensource-finance/premarket/internal/pipeline"
)

// Worker listens for run requests and executes the screening pipeline.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	loader   *loader.Service
	pipeline *pipeline.Pipeline

	outputDir string

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a worker wired to the given bus, store and pipeline.
// repo and bus may be nil; persistence and publishing are then skipped.
func NewWorker(bus domain.EventBus, repo domain.Repository, ldr *loader.Service, p *pipeline.Pipeline, outputDir string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		loader:    ldr,
		pipeline:  p,
		outputDir: outputDir,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the run-requested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicRunRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicRunRequested)
	return nil
}

// RunRequest is the payload published on the run-requested topic.
type RunRequest struct {
	Date  string `json:"date"`
	TopN  int    `json:"topN,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// RunCompleted is published after a run finishes, alongside the full
// watchlist-published payload.
type RunCompleted struct {
	RunID     string `json:"runId"`
	Date      string `json:"date"`
	RawRows   int    `json:"rawRows"`
	Qualified int    `json:"qualified"`
	Selected  int    `json:"selected"`
	Empty     string `json:"empty,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req RunRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse run request",
			"message_id", msg.ID,
			"error", err)
		return err
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			slog.Error("invalid run request date",
				"date", req.Date,
				"error", err)
			return fmt.Errorf("invalid run date %q: %w", req.Date, err)
		}
		date = parsed
	}

	_, err := w.Execute(ctx, date, req.TopN)
	return err
}

// Execute performs one full screening run: fetch the raw export, run the
// pipeline, persist and write artifacts, then publish the results.
func (w *Worker) Execute(ctx context.Context, date time.Time, topN int) (*domain.RunArtifacts, error) {
	start := time.Now()

	path, err := w.loader.Fetch(ctx, date)
	if err != nil {
		slog.Error("raw export fetch failed",
			"date", date.Format("2006-01-02"),
			"error", err)
		return nil, err
	}

	records, err := loader.ReadCSVFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw export: %w", err)
	}

	result, err := w.pipeline.RunTopN(ctx, records, date, topN)
	if err != nil {
		return nil, fmt.Errorf("pipeline run: %w", err)
	}

	arts := artifacts.Build(result, w.pipeline.Config())

	if w.repo != nil {
		if err := w.repo.SaveRun(ctx, arts); err != nil {
			slog.Error("failed to persist run",
				"date", arts.Date,
				"error", err)
		}
	}

	if w.outputDir != "" {
		if dir, err := artifacts.Write(arts, w.outputDir); err != nil {
			slog.Error("failed to write artifact files",
				"date", arts.Date,
				"error", err)
		} else {
			slog.Info("artifacts written", "dir", dir)
		}
	}

	w.publish(ctx, result, arts)

	slog.Info("run executed",
		"run_id", result.RunID,
		"date", arts.Date,
		"raw_rows", result.RawRows,
		"selected", len(result.Selection),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return arts, nil
}

func (w *Worker) publish(ctx context.Context, result *domain.RunResult, arts *domain.RunArtifacts) {
	if w.bus == nil {
		return
	}

	completed, _ := json.Marshal(RunCompleted{
		RunID:     result.RunID,
		Date:      arts.Date,
		RawRows:   result.RawRows,
		Qualified: len(result.Qualified),
		Selected:  len(result.Selection),
		Empty:     result.EmptyReason(),
	})
	if err := w.bus.Publish(ctx, domain.TopicRunCompleted, completed); err != nil {
		slog.Error("failed to publish run completion",
			"date", arts.Date,
			"error", err)
	}

	watchlist, _ := json.Marshal(arts.TopN)
	if err := w.bus.Publish(ctx, domain.TopicWatchlistPublished, watchlist); err != nil {
		slog.Error("failed to publish watchlist",
			"date", arts.Date,
			"error", err)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
