// Package features computes derived per-row quantities from coerced base
// fields. All computations are pure: absence propagates, and nothing here
// substitutes zero for unknown.
package features

import (
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Tag labels attached to notable rows.
const (
	TagLowFloat       = "LOW_FLOAT"
	TagExtremeGap     = "EXTREME_GAP"
	TagEarningsToday  = "EARNINGS_TODAY"
	TagWeek52Breakout = "FIFTY_TWO_WEEK_BREAKOUT"
)

const (
	lowFloatThreshold   = 20_000_000
	extremeGapThreshold = 20.0
	breakoutThreshold   = 0.80
)

// Derive computes gap_pct, week52_pos, turnover_dollar and tags for every
// row. evalDate is the explicit evaluation date used for date-relative
// tags; there is no process-global clock. The input slice is not mutated.
func Derive(rows []*domain.Row, evalDate time.Time) []*domain.Row {
	out := make([]*domain.Row, 0, len(rows))
	for _, r := range rows {
		row := r.Clone()
		row.GapPct = gapPct(row)
		row.Week52Pos = week52Pos(row)
		row.TurnoverDollar = turnover(row)
		row.Tags = tags(row, evalDate)
		out = append(out, row)
	}
	return out
}

// gapPct is (price - previous_close) / previous_close * 100.
// Undefined when previous_close is absent or exactly zero.
func gapPct(r *domain.Row) *float64 {
	if r.Price == nil || r.PreviousClose == nil || *r.PreviousClose == 0 {
		return nil
	}
	v := (*r.Price - *r.PreviousClose) / *r.PreviousClose * 100
	return &v
}

// week52Pos is the clamped position of price within the 52-week range.
// The coercion layer never produces a degenerate range, so high-low is
// nonzero whenever the range is present.
func week52Pos(r *domain.Row) *float64 {
	if r.Week52Range == nil || r.Price == nil {
		return nil
	}
	rng := r.Week52Range
	if rng.High == rng.Low {
		return nil
	}
	v := clamp((*r.Price-rng.Low)/(rng.High-rng.Low), 0, 1)
	return &v
}

func turnover(r *domain.Row) *float64 {
	if r.Price == nil || r.Volume == nil {
		return nil
	}
	v := *r.Price * float64(*r.Volume)
	return &v
}

func tags(r *domain.Row, evalDate time.Time) []string {
	var out []string
	if r.FloatShares != nil && *r.FloatShares < lowFloatThreshold {
		out = append(out, TagLowFloat)
	}
	if r.GapPct != nil && *r.GapPct > extremeGapThreshold {
		out = append(out, TagExtremeGap)
	}
	if r.EarningsDate != nil && daysApart(*r.EarningsDate, evalDate) <= 1 {
		out = append(out, TagEarningsToday)
	}
	if r.Week52Pos != nil && *r.Week52Pos >= breakoutThreshold {
		out = append(out, TagWeek52Breakout)
	}
	return out
}

// daysApart returns the absolute whole-day distance between two dates,
// ignoring the time of day.
func daysApart(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
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
