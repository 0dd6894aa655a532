package news

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

type fakeCache struct {
	domain.Cache
	signals map[string]*domain.NewsSignal
	stored  map[string]*domain.NewsSignal
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		signals: make(map[string]*domain.NewsSignal),
		stored:  make(map[string]*domain.NewsSignal),
	}
}

func (c *fakeCache) GetNewsSignal(_ context.Context, symbol string) (*domain.NewsSignal, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.signals[symbol], nil
}

func (c *fakeCache) SetNewsSignal(_ context.Context, symbol string, sig *domain.NewsSignal, _ time.Duration) error {
	c.stored[symbol] = sig
	return nil
}

type errProber struct{}

func (errProber) Probe(context.Context, string) (*domain.NewsSignal, error) {
	return nil, errors.New("probe unavailable")
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFreshness(t *testing.T) {
	tests := []struct {
		name   string
		age    float64
		window float64
		want   float64
	}{
		{"brand new", 0, 24, 1.0},
		{"half window", 12, 24, 0.5},
		{"at window", 24, 24, 0.0},
		{"beyond window", 48, 24, 0.0},
		{"negative age clamps", -2, 24, 1.0},
		{"zero window", 5, 0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Freshness(tt.age, tt.window); !approx(got, tt.want) {
				t.Errorf("Freshness(%v, %v) = %v, want %v", tt.age, tt.window, got, tt.want)
			}
		})
	}
}

func TestAnnotateDisabledSkipsLookups(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("must not be called")
	svc := NewService(cache, errProber{}, domain.NewsConfig{Enabled: false})

	rows := []*domain.Row{{Ticker: "AAA"}}
	out := svc.Annotate(context.Background(), rows)
	if out[0].NewsFreshScore != 0 {
		t.Fatalf("NewsFreshScore = %v, want neutral 0", out[0].NewsFreshScore)
	}
}

func TestAnnotateCacheHit(t *testing.T) {
	cache := newFakeCache()
	cache.signals["AAA"] = &domain.NewsSignal{
		Symbol:         "AAA",
		FreshnessHours: domain.Float(6),
	}
	svc := NewService(cache, nil, domain.NewsConfig{Enabled: true, FreshnessHours: 24})

	out := svc.Annotate(context.Background(), []*domain.Row{{Ticker: "AAA"}, {Ticker: "BBB"}})
	if !approx(out[0].NewsFreshScore, 0.75) {
		t.Errorf("AAA score = %v, want 0.75", out[0].NewsFreshScore)
	}
	if out[1].NewsFreshScore != 0 {
		t.Errorf("BBB score = %v, want neutral 0", out[1].NewsFreshScore)
	}
}

func TestAnnotateProbesAndCachesOnMiss(t *testing.T) {
	cache := newFakeCache()
	prober := &StaticProber{Signals: map[string]*domain.NewsSignal{
		"AAA": {Symbol: "AAA", Score: 0.9},
	}}
	svc := NewService(cache, prober, domain.NewsConfig{Enabled: true, FreshnessHours: 24})

	out := svc.Annotate(context.Background(), []*domain.Row{{Ticker: "AAA"}})
	if !approx(out[0].NewsFreshScore, 0.9) {
		t.Fatalf("score = %v, want 0.9 from probe", out[0].NewsFreshScore)
	}
	if cache.stored["AAA"] == nil {
		t.Error("probed signal was not cached")
	}
}

func TestAnnotateProbeFailureIsNeutral(t *testing.T) {
	svc := NewService(newFakeCache(), errProber{}, domain.NewsConfig{Enabled: true})

	out := svc.Annotate(context.Background(), []*domain.Row{{Ticker: "AAA"}})
	if out[0].NewsFreshScore != 0 {
		t.Fatalf("score = %v, want neutral 0 on probe failure", out[0].NewsFreshScore)
	}
}

func TestAnnotateDoesNotMutateInput(t *testing.T) {
	cache := newFakeCache()
	cache.signals["AAA"] = &domain.NewsSignal{Symbol: "AAA", Score: 0.5}
	svc := NewService(cache, nil, domain.NewsConfig{Enabled: true})

	in := []*domain.Row{{Ticker: "AAA"}}
	svc.Annotate(context.Background(), in)
	if in[0].NewsFreshScore != 0 {
		t.Fatalf("input row mutated: %v", in[0].NewsFreshScore)
	}
}
