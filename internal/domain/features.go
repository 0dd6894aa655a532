package domain

// FeatureSet is the enumerated feature schema used by the scoring engine.
// Every field is the normalized value of a named feature; the schema is
// fixed at compile time rather than discovered from column prefixes at
// runtime. Absent inputs normalize to 0 (fail-closed: an unknown feature
// contributes nothing to the score).
type FeatureSet struct {
	RelVol      float64 `json:"relvol"`
	Gap         float64 `json:"gap"`
	AvgVol      float64 `json:"avgvol"`
	FloatBand   float64 `json:"float_band"`
	ShortFloat  float64 `json:"short_float"`
	AfterHours  float64 `json:"after_hours"`
	Change      float64 `json:"change"`
	W52Pos      float64 `json:"w52pos"`
	NewsFresh   float64 `json:"news_fresh"`
	Analyst     float64 `json:"analyst"`
	InsiderInst float64 `json:"insider_inst"`
}

// FeatureContribution shows how a single feature contributed to a score.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// PenaltyApplied records one triggered penalty, after the single-negative cap.
type PenaltyApplied struct {
	Penalty string  `json:"penalty"`
	Amount  float64 `json:"amount"` // positive number subtracted from the score
	Capped  bool    `json:"capped"`
}

// ScoreBreakdown is the explainable decomposition of a composite score.
type ScoreBreakdown struct {
	Contributions []FeatureContribution `json:"contributions"`
	Penalties     []PenaltyApplied      `json:"penalties,omitempty"`
	Total         float64               `json:"total"`
}
