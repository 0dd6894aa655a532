package domain

import "time"

// RunResult is the complete in-memory output of one pipeline run, handed
// back to collaborators for serialization and logging. The core never
// writes files itself.
type RunResult struct {
	RunID       string    `json:"runId"`
	Date        string    `json:"date"` // run date, YYYY-MM-DD
	GeneratedAt time.Time `json:"generatedAt"`

	// Input observability
	RawRows          int      `json:"rawRows"`
	UnmappedColumns  []string `json:"unmappedColumns,omitempty"`
	CoercionWarnings int      `json:"coercionWarnings"`

	// Filter partition. Qualified and Rejected are disjoint and together
	// conserve the input row count.
	Qualified []*Row `json:"qualified"`
	Rejected  []*Row `json:"rejected"`

	// Scored is the full qualified table with scores and tiers, sorted by
	// (score desc, turnover desc, ticker asc).
	Scored []*Row `json:"scored"`

	// Selection is the diversified Top-N with dense 1-based ranks.
	Selection []*Row `json:"selection"`

	TierCounts map[string]int     `json:"tierCounts"`
	TimingsSec map[string]float64 `json:"timingsSec"`
	Notes      []string           `json:"notes,omitempty"`
}

// Empty-result conditions. These are states, not errors: any input yields
// a structurally valid result, and the caller decides exit behavior.
const (
	EmptyNone        = ""
	EmptyInput       = "empty_input"
	EmptyNoQualified = "no_qualified"
	EmptySelection   = "empty_selection"
)

// EmptyReason reports which empty-result condition holds, if any.
func (r *RunResult) EmptyReason() string {
	switch {
	case r.RawRows == 0:
		return EmptyInput
	case len(r.Qualified) == 0:
		return EmptyNoQualified
	case len(r.Selection) == 0:
		return EmptySelection
	}
	return EmptyNone
}

// RankedSymbol is one entry of the Top-N ranking artifact.
type RankedSymbol struct {
	Rank   int     `json:"rank"`
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Tier   string  `json:"tier"`
}

// TopNArtifact is the topN.json payload.
type TopNArtifact struct {
	GeneratedAt string         `json:"generated_at"`
	TopN        int            `json:"top_n"`
	Symbols     []string       `json:"symbols"`
	Ranking     []RankedSymbol `json:"ranking"`
}

// WatchlistEntry is one line of the compact watchlist.csv artifact.
// Absent numerics are zero-filled here, at presentation time.
type WatchlistEntry struct {
	Rank      int      `json:"rank"`
	Symbol    string   `json:"symbol"`
	Score     float64  `json:"score"`
	Tier      string   `json:"tier"`
	GapPct    float64  `json:"gap_pct"`
	RelVolume float64  `json:"rel_volume"`
	Tags      []string `json:"tags"`
}

// RunSummary is the run_summary.json payload.
type RunSummary struct {
	Date       string             `json:"date"`
	RawRows    int                `json:"raw_rows"`
	Qualified  int                `json:"qualified"`
	TopN       int                `json:"top_n"`
	Warnings   int                `json:"coercion_warnings"`
	Filters    PremarketConfig    `json:"filters"`
	TimingsSec map[string]float64 `json:"timings_sec"`
	Notes      []string           `json:"notes"`
	Tiers      map[string]int     `json:"tiers"`
}

// RunArtifacts bundles everything persisted for one run date.
type RunArtifacts struct {
	Date          string           `json:"date"`
	GeneratedAt   string           `json:"generated_at"`
	FullWatchlist []*Row           `json:"full_watchlist"`
	TopN          TopNArtifact     `json:"top_n"`
	Watchlist     []WatchlistEntry `json:"watchlist"`
	Summary       RunSummary       `json:"run_summary"`
}
