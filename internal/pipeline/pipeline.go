// Package pipeline orchestrates one screening run: normalize, coerce,
// derive, filter, annotate, score, rank and select.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/premarket/internal/domain"
	"github.com/opensource-finance/premarket/internal/features"
	"github.com/opensource-finance/premarket/internal/filters"
	"github.com/opensource-finance/premarket/internal/news"
	"github.com/opensource-finance/premarket/internal/normalize"
	"github.com/opensource-finance/premarket/internal/ranker"
)

var tracer = otel.Tracer("premarket-pipeline")

// Pipeline runs the screening stages over a raw export. It is stateless
// across runs; the same pipeline value can serve one-shot CLI runs and
// the worker loop.
type Pipeline struct {
	strategy   *domain.StrategyConfig
	screen     *filters.Stage
	scorer     *ranker.Scorer
	news       *news.Service
	maxWorkers int
}

// New creates a pipeline for the given strategy. The news service may be
// nil, in which case every row carries the neutral freshness score.
func New(strategy *domain.StrategyConfig, newsSvc *news.Service, maxWorkers int) (*Pipeline, error) {
	screen, err := filters.New(strategy.Premarket)
	if err != nil {
		return nil, fmt.Errorf("compile filters: %w", err)
	}

	return &Pipeline{
		strategy:   strategy,
		screen:     screen,
		scorer:     ranker.NewScorer(strategy.Premarket),
		news:       newsSvc,
		maxWorkers: maxWorkers,
	}, nil
}

// Config returns the premarket settings the pipeline was built with.
func (p *Pipeline) Config() domain.PremarketConfig {
	return p.strategy.Premarket
}

// Run executes one screening run for evalDate. Any input yields a
// structurally valid result; empty outcomes are states on the result,
// not errors.
func (p *Pipeline) Run(ctx context.Context, raw []domain.RawRecord, evalDate time.Time) (*domain.RunResult, error) {
	return p.RunTopN(ctx, raw, evalDate, 0)
}

// RunTopN is Run with a per-run selection size override; zero means the
// configured top_n.
func (p *Pipeline) RunTopN(ctx context.Context, raw []domain.RawRecord, evalDate time.Time, topN int) (*domain.RunResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.date", evalDate.Format("2006-01-02")),
			attribute.Int("run.raw_rows", len(raw)),
		),
	)
	defer span.End()

	cfg := p.strategy.Premarket
	if topN <= 0 {
		topN = cfg.TopN
	}

	result := &domain.RunResult{
		RunID:       uuid.New().String(),
		Date:        evalDate.Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		RawRows:     len(raw),
		TierCounts:  make(map[string]int),
		TimingsSec:  make(map[string]float64),
	}

	var canonical []domain.CanonicalRecord
	p.stage(ctx, "normalize", result, func(context.Context) {
		canonical, result.UnmappedColumns = normalize.NormalizeColumns(raw)
	})

	var rows []*domain.Row
	p.stage(ctx, "coerce", result, func(context.Context) {
		rows, result.CoercionWarnings = normalize.Coerce(canonical)
	})

	p.stage(ctx, "derive", result, func(context.Context) {
		rows = features.Derive(rows, evalDate)
	})

	p.stage(ctx, "filter", result, func(context.Context) {
		result.Qualified, result.Rejected = p.screen.Apply(rows, evalDate)
	})

	annotated := result.Qualified
	if p.news != nil {
		p.stage(ctx, "news", result, func(sctx context.Context) {
			annotated = p.news.Annotate(sctx, annotated)
		})
	}

	p.stage(ctx, "score", result, func(sctx context.Context) {
		scored := p.scorer.ScoreAll(sctx, annotated, evalDate, p.maxWorkers)
		ranker.SortRows(scored)
		result.Scored = scored
	})

	p.stage(ctx, "select", result, func(context.Context) {
		result.Selection = ranker.Select(result.Scored, topN, cfg.MaxPerSector, cfg.Selection)
		for _, row := range result.Selection {
			result.TierCounts[row.Tier]++
		}
	})

	span.SetAttributes(
		attribute.Int("run.qualified", len(result.Qualified)),
		attribute.Int("run.selected", len(result.Selection)),
	)

	slog.Info("screening run complete",
		"run_id", result.RunID,
		"date", result.Date,
		"raw_rows", result.RawRows,
		"qualified", len(result.Qualified),
		"selected", len(result.Selection),
		"coercion_warnings", result.CoercionWarnings,
		"tiers", result.TierCounts,
	)

	return result, nil
}

// stage runs one pipeline stage under its own span and records its wall
// time on the result.
func (p *Pipeline) stage(ctx context.Context, name string, result *domain.RunResult, fn func(context.Context)) {
	sctx, span := tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	fn(sctx)
	result.TimingsSec[name] = time.Since(start).Seconds()
}
