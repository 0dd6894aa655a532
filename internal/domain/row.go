// Package domain defines the core interfaces and types for the premarket pipeline.
package domain

import (
	"time"
)

// RawRecord is one row of the screener export as read from the source table,
// keyed by the raw column header. It exists only until normalization.
type RawRecord map[string]string

// CanonicalRecord is a RawRecord remapped to canonical field names.
// Unrecognized source columns are dropped; missing canonical columns are
// simply absent until coercion.
type CanonicalRecord map[string]string

// Range is a parsed low/high pair, e.g. from a "10 - 30" 52-week range cell.
// Degenerate ranges (low == high) are never constructed; they coerce to absent.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Row is a fully coerced candidate row. Absent values are nil pointers,
// never zero: zero-filling happens only at presentation time.
//
// The row accumulates pipeline state as it flows forward (derived features,
// filter outcome, score, rank). Each stage owns its output slice; no stage
// mutates a prior stage's rows.
type Row struct {
	// Identity
	Ticker   string `json:"symbol"`
	Company  string `json:"company"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Exchange string `json:"exchange"`
	Country  string `json:"country"`

	// Coerced base fields
	MarketCap           *float64   `json:"market_cap"`
	PE                  *float64   `json:"pe"`
	Price               *float64   `json:"price"`
	PreviousClose       *float64   `json:"previous_close"`
	ChangePct           *float64   `json:"change_pct"`
	Volume              *int64     `json:"volume"`
	AvgVolume3M         *int64     `json:"avg_volume_3m"`
	RelVolume           *float64   `json:"rel_volume"`
	FloatShares         *int64     `json:"float_shares"`
	ShortFloatPct       *float64   `json:"short_float_pct"`
	AfterHoursChangePct *float64   `json:"after_hours_change_pct"`
	Week52Range         *Range     `json:"-"`
	Week52RangeRaw      string     `json:"week52_range"`
	EarningsDate        *time.Time `json:"earnings_date"`
	AnalystRecom        string     `json:"analyst_recom"`
	InsiderTransPct     *float64   `json:"insider_transactions,omitempty"`
	InstitutionalPct    *float64   `json:"institutional_transactions,omitempty"`

	// Derived fields (absent if any input is absent)
	GapPct         *float64 `json:"gap_pct"`
	Week52Pos      *float64 `json:"week52_pos"`
	TurnoverDollar *float64 `json:"turnover_dollar"`

	// Injected signal: 0.0 means no signal / neutral.
	NewsFreshScore float64 `json:"news_fresh_score"`

	// Filter outcome. Rejected rows are retained for diagnostics.
	Qualified        bool     `json:"qualified"`
	RejectionReasons []string `json:"rejection_reasons"`

	// Scoring outcome
	Features FeatureSet `json:"features"`
	Score    float64    `json:"score"`
	Tier     string     `json:"tier"`
	Tags     []string   `json:"tags"`

	// Selection outcome: dense 1-based rank, 0 if not selected.
	Rank int `json:"rank,omitempty"`
}

// Clone returns a deep copy of the row so a stage can own its output
// without leaking mutations backward.
func (r *Row) Clone() *Row {
	c := *r
	c.RejectionReasons = append([]string(nil), r.RejectionReasons...)
	c.Tags = append([]string(nil), r.Tags...)
	c.MarketCap = cloneFloat(r.MarketCap)
	c.PE = cloneFloat(r.PE)
	c.Price = cloneFloat(r.Price)
	c.PreviousClose = cloneFloat(r.PreviousClose)
	c.ChangePct = cloneFloat(r.ChangePct)
	c.Volume = cloneInt(r.Volume)
	c.AvgVolume3M = cloneInt(r.AvgVolume3M)
	c.RelVolume = cloneFloat(r.RelVolume)
	c.FloatShares = cloneInt(r.FloatShares)
	c.ShortFloatPct = cloneFloat(r.ShortFloatPct)
	c.AfterHoursChangePct = cloneFloat(r.AfterHoursChangePct)
	c.InsiderTransPct = cloneFloat(r.InsiderTransPct)
	c.InstitutionalPct = cloneFloat(r.InstitutionalPct)
	c.GapPct = cloneFloat(r.GapPct)
	c.Week52Pos = cloneFloat(r.Week52Pos)
	c.TurnoverDollar = cloneFloat(r.TurnoverDollar)
	if r.Week52Range != nil {
		rng := *r.Week52Range
		c.Week52Range = &rng
	}
	if r.EarningsDate != nil {
		d := *r.EarningsDate
		c.EarningsDate = &d
	}
	return &c
}

// Turnover returns the dollar turnover used as a sort tie-break,
// treating absent as zero.
func (r *Row) Turnover() float64 {
	if r.TurnoverDollar == nil {
		return 0
	}
	return *r.TurnoverDollar
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v. Convenience for tests and fixtures.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v. Convenience for tests and fixtures.
func Int(v int64) *int64 { return &v }
