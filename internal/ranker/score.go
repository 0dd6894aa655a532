// Package ranker computes composite scores, assigns tiers and selects the
// diversified Top-N.
package ranker

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Normalization scales. Weights and penalties are configuration; these
// constants define the fixed mapping from raw feature units onto the
// comparable [0,1] (or signed [-1,1]) ranges the weights multiply.
const (
	relVolSaturation    = 5.0  // rel_volume at which the feature saturates
	gapSaturationPct    = 10.0 // |gap| percent mapping to ±1
	changeSaturationPct = 10.0 // |change| percent mapping to ±1
	afterHoursSatPct    = 5.0  // |after-hours change| percent mapping to ±1
	shortFloatSatPct    = 20.0 // short float percent mapping to 1
	insiderInstSatPct   = 10.0 // combined insider+institutional percent mapping to ±1
	avgVolLogFloor      = 5.0  // log10 volume at or below which the feature is 0 (100K)
	avgVolLogCeil       = 8.0  // log10 volume at or above which the feature is 1 (100M)

	floatBandLow  = 10_000_000.0
	floatBandHigh = 100_000_000.0
)

// Feature names as they appear in score breakdowns.
const (
	FeatRelVol      = "relvol"
	FeatGap         = "gap"
	FeatAvgVol      = "avgvol"
	FeatFloatBand   = "float_band"
	FeatShortFloat  = "short_float"
	FeatAfterHours  = "after_hours"
	FeatChange      = "change"
	FeatW52Pos      = "w52pos"
	FeatNewsFresh   = "news_fresh"
	FeatAnalyst     = "analyst"
	FeatInsiderInst = "insider_inst"
)

// Penalty names as they appear in score breakdowns.
const (
	PenaltyEarningsNear = "earnings_near"
	PenaltyPEOutlier    = "pe_outlier"
)

// Default sane P/E band for the pe_outlier trigger.
const (
	defaultPEMin = 1.0
	defaultPEMax = 100.0
)

// Scorer computes composite scores from weighted normalized features.
type Scorer struct {
	cfg domain.PremarketConfig
}

// NewScorer creates a scorer for the given strategy parameters.
func NewScorer(cfg domain.PremarketConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the composite score for one row. Absent inputs normalize
// to 0 and so contribute nothing to their weighted term; zero-weighted
// features are no-ops with no special casing. Each triggered penalty is
// capped at caps.max_single_negative before it is subtracted.
func (s *Scorer) Score(row *domain.Row, evalDate time.Time) (domain.FeatureSet, float64, domain.ScoreBreakdown) {
	fs := s.normalize(row)
	w := s.cfg.Weights

	contributions := []domain.FeatureContribution{
		{Feature: FeatRelVol, Value: fs.RelVol, Weight: w.RelVol},
		{Feature: FeatGap, Value: fs.Gap, Weight: w.Gap},
		{Feature: FeatAvgVol, Value: fs.AvgVol, Weight: w.AvgVol},
		{Feature: FeatFloatBand, Value: fs.FloatBand, Weight: w.FloatBand},
		{Feature: FeatShortFloat, Value: fs.ShortFloat, Weight: w.ShortFloat},
		{Feature: FeatAfterHours, Value: fs.AfterHours, Weight: w.AfterHours},
		{Feature: FeatChange, Value: fs.Change, Weight: w.Change},
		{Feature: FeatW52Pos, Value: fs.W52Pos, Weight: w.W52Pos},
		{Feature: FeatNewsFresh, Value: fs.NewsFresh, Weight: w.NewsFresh},
		{Feature: FeatAnalyst, Value: fs.Analyst, Weight: w.Analyst},
		{Feature: FeatInsiderInst, Value: fs.InsiderInst, Weight: w.InsiderInst},
	}

	var total float64
	for i := range contributions {
		contributions[i].Contribution = contributions[i].Value * contributions[i].Weight
		total += contributions[i].Contribution
	}

	penalties := s.penalties(row, evalDate)
	for _, p := range penalties {
		total -= p.Amount
	}

	breakdown := domain.ScoreBreakdown{
		Contributions: contributions,
		Penalties:     penalties,
		Total:         total,
	}
	return fs, total, breakdown
}

// ScoreAll scores every row over a bounded worker pool and returns scored
// clones in the input order. Scoring is stateless per row, so execution
// order never affects the result.
func (s *Scorer) ScoreAll(ctx context.Context, rows []*domain.Row, evalDate time.Time, maxWorkers int) []*domain.Row {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	out := make([]*domain.Row, len(rows))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxWorkers)

	for i, row := range rows {
		wg.Add(1)
		go func(idx int, r *domain.Row) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			scored := r.Clone()
			fs, score, _ := s.Score(scored, evalDate)
			scored.Features = fs
			scored.Score = score
			scored.Tier = AssignTier(score, s.cfg.Tiers)
			out[idx] = scored
		}(i, row)
	}

	wg.Wait()
	return out
}

func (s *Scorer) normalize(row *domain.Row) domain.FeatureSet {
	return domain.FeatureSet{
		RelVol:      clamp(val(row.RelVolume)/relVolSaturation, 0, 1),
		Gap:         clamp(val(row.GapPct)/gapSaturationPct, -1, 1),
		AvgVol:      avgVolFeature(row.AvgVolume3M),
		FloatBand:   floatBandFeature(row.FloatShares),
		ShortFloat:  clamp(val(row.ShortFloatPct)/shortFloatSatPct, 0, 1),
		AfterHours:  clamp(val(row.AfterHoursChangePct)/afterHoursSatPct, -1, 1),
		Change:      clamp(val(row.ChangePct)/changeSaturationPct, -1, 1),
		W52Pos:      val(row.Week52Pos),
		NewsFresh:   clamp(row.NewsFreshScore, 0, 1),
		Analyst:     analystFeature(row.AnalystRecom),
		InsiderInst: insiderInstFeature(row),
	}
}

// avgVolFeature maps average volume onto [0,1] on a log scale:
// 100K shares or fewer is 0, 100M or more is 1.
func avgVolFeature(v *int64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return clamp((math.Log10(float64(*v))-avgVolLogFloor)/(avgVolLogCeil-avgVolLogFloor), 0, 1)
}

// floatBandFeature favors a target float band rather than a monotonic
// direction: floats inside [10M, 100M] score 1, shrinking proportionally
// outside the band in either direction.
func floatBandFeature(v *int64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	f := float64(*v)
	switch {
	case f < floatBandLow:
		return clamp(f/floatBandLow, 0, 1)
	case f > floatBandHigh:
		return clamp(floatBandHigh/f, 0, 1)
	}
	return 1
}

// analystFeature maps an analyst recommendation onto [0,1]. Accepts both
// the numeric 1-5 consensus scale (1 = strong buy) and label variants;
// unknown or absent recommendations are neutral-absent (0).
func analystFeature(recom string) float64 {
	r := strings.TrimSpace(recom)
	if r == "" {
		return 0
	}

	if n, err := strconv.ParseFloat(r, 64); err == nil {
		return clamp((5-n)/4, 0, 1)
	}

	switch strings.ToLower(r) {
	case "strong buy":
		return 1.0
	case "buy":
		return 0.75
	case "hold", "neutral":
		return 0.5
	case "sell":
		return 0.25
	case "strong sell":
		return 0.0
	}
	return 0
}

func insiderInstFeature(row *domain.Row) float64 {
	combined := val(row.InsiderTransPct) + val(row.InstitutionalPct)
	return clamp(combined/insiderInstSatPct, -1, 1)
}

// penalties evaluates the penalty triggers, capping each at
// caps.max_single_negative so no single condition can drive the score far
// negative. A zero cap means uncapped.
func (s *Scorer) penalties(row *domain.Row, evalDate time.Time) []domain.PenaltyApplied {
	var out []domain.PenaltyApplied

	if s.cfg.Penalties.EarningsNear > 0 && s.earningsNear(row, evalDate) {
		out = append(out, s.capped(PenaltyEarningsNear, s.cfg.Penalties.EarningsNear))
	}
	if s.cfg.Penalties.PEOutlier > 0 && s.peOutlier(row) {
		out = append(out, s.capped(PenaltyPEOutlier, s.cfg.Penalties.PEOutlier))
	}

	return out
}

func (s *Scorer) capped(name string, amount float64) domain.PenaltyApplied {
	cap := s.cfg.Caps.MaxSingleNegative
	if cap > 0 && amount > cap {
		return domain.PenaltyApplied{Penalty: name, Amount: cap, Capped: true}
	}
	return domain.PenaltyApplied{Penalty: name, Amount: amount}
}

// earningsNear triggers when the earnings date falls inside the exclusion
// window, even for rows the hard filter did not reject.
func (s *Scorer) earningsNear(row *domain.Row, evalDate time.Time) bool {
	if row.EarningsDate == nil {
		return false
	}
	return s.cfg.EarningsWindowContains(*row.EarningsDate, evalDate)
}

// peOutlier triggers when a present P/E sits outside the configured sane
// band. An absent P/E is not an outlier; it simply carries no information.
func (s *Scorer) peOutlier(row *domain.Row) bool {
	if row.PE == nil {
		return false
	}
	min, max := s.cfg.Penalties.PEMin, s.cfg.Penalties.PEMax
	if min == 0 {
		min = defaultPEMin
	}
	if max == 0 {
		max = defaultPEMax
	}
	return *row.PE < min || *row.PE > max
}

func val(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
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
