package ranker

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

var evalDate = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func zeroWeightConfig() domain.PremarketConfig {
	return domain.PremarketConfig{}
}

func TestScoreZeroWeightsIsZero(t *testing.T) {
	s := NewScorer(zeroWeightConfig())
	row := &domain.Row{
		Ticker:    "AAA",
		RelVolume: domain.Float(4.0),
		GapPct:    domain.Float(8.0),
		Week52Pos: domain.Float(0.9),
	}

	_, score, breakdown := s.Score(row, evalDate)
	if score != 0 {
		t.Fatalf("score = %v, want 0 with all weights zero", score)
	}
	for _, c := range breakdown.Contributions {
		if c.Contribution != 0 {
			t.Errorf("feature %s contributed %v with zero weight", c.Feature, c.Contribution)
		}
	}
}

func TestScoreSingleFeatureContribution(t *testing.T) {
	cfg := zeroWeightConfig()
	cfg.Weights.RelVol = 0.20
	s := NewScorer(cfg)

	row := &domain.Row{Ticker: "AAA", RelVolume: domain.Float(2.5)}
	_, score, _ := s.Score(row, evalDate)

	// 2.5 / 5.0 saturation = 0.5 normalized, times 0.20 weight.
	if !approx(score, 0.10) {
		t.Fatalf("score = %v, want 0.10", score)
	}
}

func TestScoreRelVolSaturates(t *testing.T) {
	cfg := zeroWeightConfig()
	cfg.Weights.RelVol = 1.0
	s := NewScorer(cfg)

	row := &domain.Row{Ticker: "AAA", RelVolume: domain.Float(50.0)}
	fs, score, _ := s.Score(row, evalDate)
	if fs.RelVol != 1.0 {
		t.Errorf("RelVol = %v, want saturated 1.0", fs.RelVol)
	}
	if !approx(score, 1.0) {
		t.Errorf("score = %v, want 1.0", score)
	}
}

func TestScoreAbsentInputsContributeZero(t *testing.T) {
	cfg := domain.DefaultStrategy().Premarket
	cfg.Penalties = domain.Penalties{}
	s := NewScorer(cfg)

	_, score, breakdown := s.Score(&domain.Row{Ticker: "AAA"}, evalDate)
	if score != 0 {
		t.Fatalf("fully absent row scored %v, want 0", score)
	}
	if len(breakdown.Penalties) != 0 {
		t.Fatalf("fully absent row took penalties %v", breakdown.Penalties)
	}
}

func TestScoreGapSigned(t *testing.T) {
	cfg := zeroWeightConfig()
	cfg.Weights.Gap = 0.15
	s := NewScorer(cfg)

	tests := []struct {
		name string
		gap  float64
		want float64
	}{
		{"positive gap", 5.0, 0.075},
		{"negative gap", -5.0, -0.075},
		{"clamped low", -30.0, -0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &domain.Row{Ticker: "AAA", GapPct: domain.Float(tt.gap)}
			_, score, _ := s.Score(row, evalDate)
			if !approx(score, tt.want) {
				t.Errorf("score = %v, want %v", score, tt.want)
			}
		})
	}
}

func TestAvgVolFeatureLogScale(t *testing.T) {
	tests := []struct {
		name string
		vol  *int64
		want float64
	}{
		{"absent", nil, 0},
		{"at floor", domain.Int(100_000), 0},
		{"one decade up", domain.Int(1_000_000), 1.0 / 3.0},
		{"at ceiling", domain.Int(100_000_000), 1},
		{"above ceiling", domain.Int(1_000_000_000), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := avgVolFeature(tt.vol); !approx(got, tt.want) {
				t.Errorf("avgVolFeature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFloatBandFeature(t *testing.T) {
	tests := []struct {
		name  string
		float *int64
		want  float64
	}{
		{"absent", nil, 0},
		{"inside band", domain.Int(50_000_000), 1},
		{"below band", domain.Int(5_000_000), 0.5},
		{"above band", domain.Int(200_000_000), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := floatBandFeature(tt.float); !approx(got, tt.want) {
				t.Errorf("floatBandFeature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalystFeature(t *testing.T) {
	tests := []struct {
		recom string
		want  float64
	}{
		{"", 0},
		{"Strong Buy", 1.0},
		{"Buy", 0.75},
		{"Hold", 0.5},
		{"Sell", 0.25},
		{"Strong Sell", 0.0},
		{"1.00", 1.0},
		{"2.10", 0.725},
		{"5.00", 0.0},
		{"Outperform", 0},
	}
	for _, tt := range tests {
		t.Run(tt.recom, func(t *testing.T) {
			if got := analystFeature(tt.recom); !approx(got, tt.want) {
				t.Errorf("analystFeature(%q) = %v, want %v", tt.recom, got, tt.want)
			}
		})
	}
}

func TestPenaltyEarningsNear(t *testing.T) {
	cfg := zeroWeightConfig()
	cfg.EarningsExcludeWindowDays = 3
	cfg.Penalties.EarningsNear = 0.15
	s := NewScorer(cfg)

	inside := evalDate.AddDate(0, 0, 2)
	outside := evalDate.AddDate(0, 0, 10)

	tests := []struct {
		name     string
		earnings *time.Time
		want     float64
	}{
		{"inside window", &inside, -0.15},
		{"outside window", &outside, 0},
		{"absent date", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &domain.Row{Ticker: "AAA", EarningsDate: tt.earnings}
			_, score, _ := s.Score(row, evalDate)
			if !approx(score, tt.want) {
				t.Errorf("score = %v, want %v", score, tt.want)
			}
		})
	}

	t.Run("calendar days regardless of eval zone", func(t *testing.T) {
		// Three calendar days out is inside the window even when the
		// evaluation date's zone puts it on a different UTC day.
		offEval := time.Date(2025, 6, 2, 2, 0, 0, 0, time.FixedZone("UTC+13", 13*3600))
		boundary := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

		row := &domain.Row{Ticker: "AAA", EarningsDate: &boundary}
		_, score, _ := s.Score(row, offEval)
		if !approx(score, -0.15) {
			t.Errorf("score = %v, want %v", score, -0.15)
		}
	})
}

func TestPenaltyPEOutlier(t *testing.T) {
	cfg := zeroWeightConfig()
	cfg.Penalties.PEOutlier = 0.10
	s := NewScorer(cfg)

	tests := []struct {
		name string
		pe   *float64
		want float64
	}{
		{"sane pe", domain.Float(25.0), 0},
		{"extreme pe", domain.Float(500.0), -0.10},
		{"negative pe", domain.Float(-4.0), -0.10},
		{"absent pe carries no information", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &domain.Row{Ticker: "AAA", PE: tt.pe}
			_, score, _ := s.Score(row, evalDate)
			if !approx(score, tt.want) {
				t.Errorf("score = %v, want %v", score, tt.want)
			}
		})
	}
}

func TestPenaltyCapping(t *testing.T) {
	cfg := zeroWeightConfig()
	cfg.EarningsExcludeWindowDays = 3
	cfg.Penalties.EarningsNear = 0.50
	cfg.Caps.MaxSingleNegative = 0.20
	s := NewScorer(cfg)

	earnings := evalDate.AddDate(0, 0, 1)
	row := &domain.Row{Ticker: "AAA", EarningsDate: &earnings}
	_, score, breakdown := s.Score(row, evalDate)

	if !approx(score, -0.20) {
		t.Fatalf("score = %v, want capped -0.20", score)
	}
	if len(breakdown.Penalties) != 1 {
		t.Fatalf("penalties = %v, want exactly one", breakdown.Penalties)
	}
	p := breakdown.Penalties[0]
	if p.Penalty != PenaltyEarningsNear || !p.Capped || !approx(p.Amount, 0.20) {
		t.Errorf("penalty = %+v, want earnings_near capped at 0.20", p)
	}
}

func TestAssignTier(t *testing.T) {
	b := domain.TierBoundaries{A: 0.70, B: 0.50, C: 0.30}

	tests := []struct {
		score float64
		want  string
	}{
		{0.90, domain.TierA},
		{0.70, domain.TierB}, // exact boundary resolves down
		{0.60, domain.TierB},
		{0.50, domain.TierC},
		{0.35, domain.TierC},
		{0.30, domain.TierD},
		{-0.10, domain.TierD},
	}
	for _, tt := range tests {
		if got := AssignTier(tt.score, b); got != tt.want {
			t.Errorf("AssignTier(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScoreAllPreservesOrderAndInputs(t *testing.T) {
	cfg := domain.DefaultStrategy().Premarket
	s := NewScorer(cfg)

	rows := []*domain.Row{
		{Ticker: "AAA", RelVolume: domain.Float(3.0)},
		{Ticker: "BBB", RelVolume: domain.Float(1.0)},
		{Ticker: "CCC"},
	}

	out := s.ScoreAll(context.Background(), rows, evalDate, 2)
	if len(out) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(out), len(rows))
	}
	for i, row := range rows {
		if out[i].Ticker != row.Ticker {
			t.Errorf("position %d = %s, want %s", i, out[i].Ticker, row.Ticker)
		}
		if row.Score != 0 || row.Tier != "" {
			t.Errorf("input row %s mutated: score=%v tier=%q", row.Ticker, row.Score, row.Tier)
		}
		if out[i].Tier == "" {
			t.Errorf("output row %s has no tier", out[i].Ticker)
		}
	}
	if out[0].Score <= out[1].Score {
		t.Errorf("higher relvol scored %v <= %v", out[0].Score, out[1].Score)
	}
}
