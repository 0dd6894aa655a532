// Package news annotates candidate rows with the optional news-freshness
// signal.
package news

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Default signal memoization TTL. Premarket runs repeat within the hour;
// a short TTL keeps the signal from going stale across sessions.
const signalTTL = 30 * time.Minute

// Prober looks up the latest news signal for a symbol from an external
// source. Implementations return nil, nil when the symbol has no recent
// news at all.
type Prober interface {
	Probe(ctx context.Context, symbol string) (*domain.NewsSignal, error)
}

// Service resolves per-symbol freshness scores, cache-first, probing only
// on a miss. The signal is best-effort: probe and cache failures log and
// degrade the symbol to neutral rather than failing the run.
type Service struct {
	cache  domain.Cache
	prober Prober
	cfg    domain.NewsConfig
}

// NewService creates a news signal service. Both cache and prober may be
// nil; a nil prober means only already-cached signals are used.
func NewService(cache domain.Cache, prober Prober, cfg domain.NewsConfig) *Service {
	return &Service{
		cache:  cache,
		prober: prober,
		cfg:    cfg,
	}
}

// Annotate returns clones of rows with NewsFreshScore populated. When the
// signal is disabled every row gets the neutral 0.0 and no lookups happen.
func (s *Service) Annotate(ctx context.Context, rows []*domain.Row) []*domain.Row {
	out := make([]*domain.Row, len(rows))
	for i, row := range rows {
		c := row.Clone()
		if s.cfg.Enabled {
			c.NewsFreshScore = s.score(ctx, c.Ticker)
		}
		out[i] = c
	}
	return out
}

// score resolves one symbol's freshness score. Any failure along the way
// yields the neutral 0.0.
func (s *Service) score(ctx context.Context, symbol string) float64 {
	sig := s.lookup(ctx, symbol)
	if sig == nil {
		return 0
	}
	if sig.FreshnessHours != nil {
		return Freshness(*sig.FreshnessHours, s.window())
	}
	return clamp(sig.Score, 0, 1)
}

func (s *Service) lookup(ctx context.Context, symbol string) *domain.NewsSignal {
	if s.cache != nil {
		sig, err := s.cache.GetNewsSignal(ctx, symbol)
		if err != nil {
			slog.Warn("news signal cache lookup failed",
				"symbol", symbol,
				"error", err)
		} else if sig != nil {
			return sig
		}
	}

	if s.prober == nil {
		return nil
	}

	sig, err := s.prober.Probe(ctx, symbol)
	if err != nil {
		slog.Warn("news probe failed",
			"symbol", symbol,
			"error", err)
		return nil
	}
	if sig == nil {
		return nil
	}

	if s.cache != nil {
		if err := s.cache.SetNewsSignal(ctx, symbol, sig, signalTTL); err != nil {
			slog.Warn("news signal cache store failed",
				"symbol", symbol,
				"error", err)
		}
	}
	return sig
}

func (s *Service) window() float64 {
	if s.cfg.FreshnessHours > 0 {
		return float64(s.cfg.FreshnessHours)
	}
	return 24
}

// Freshness converts an article age in hours into the [0,1] freshness
// score: 1 at age zero, linearly decaying to 0 at the window edge.
func Freshness(ageHours, windowHours float64) float64 {
	if windowHours <= 0 {
		return 0
	}
	if ageHours < 0 {
		ageHours = 0
	}
	if ageHours > windowHours {
		ageHours = windowHours
	}
	return clamp(1-ageHours/windowHours, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// StaticProber serves signals from a fixed map. Useful for tests and for
// injecting externally computed signals without a live news source.
type StaticProber struct {
	Signals map[string]*domain.NewsSignal
}

// Probe returns the configured signal for symbol, or nil, nil.
func (p *StaticProber) Probe(_ context.Context, symbol string) (*domain.NewsSignal, error) {
	return p.Signals[symbol], nil
}
