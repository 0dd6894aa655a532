// Package filters qualifies or rejects candidate rows against configured
// hard thresholds, recording every failing rule's identifier.
package filters

import (
	"strings"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Rule identifiers recorded in rejection_reasons, in declaration order.
const (
	ReasonPriceRange     = "price_range"
	ReasonAvgVolume      = "avg_vol_min"
	ReasonRelVolume      = "rel_vol_min"
	ReasonFloat          = "float_min"
	ReasonEarningsWindow = "earnings_window"
	ReasonExchange       = "exclude_exchange"
	ReasonCountry        = "exclude_country"
)

// CustomReason builds the rejection reason for a custom screen rule.
func CustomReason(id string) string { return "custom:" + id }

// Stage evaluates the configured hard filters. Custom CEL screen rules,
// if any, are compiled once at construction.
type Stage struct {
	cfg    domain.PremarketConfig
	screen *Screen
}

// New creates a filter stage. Returns an error only when a custom screen
// expression fails to compile; threshold rules cannot fail to construct.
func New(cfg domain.PremarketConfig) (*Stage, error) {
	s := &Stage{cfg: cfg}
	if len(cfg.CustomRules) > 0 {
		screen, err := NewScreen(cfg.CustomRules)
		if err != nil {
			return nil, err
		}
		s.screen = screen
	}
	return s, nil
}

// Apply partitions rows into qualified and rejected sets. Every rule is
// evaluated independently for every row, so a rejected row carries the
// full list of failing rules in declaration order. Rows are cloned; the
// input table is not mutated. The two outputs are disjoint and together
// conserve the input row count.
func (s *Stage) Apply(rows []*domain.Row, evalDate time.Time) (qualified, rejected []*domain.Row) {
	qualified = make([]*domain.Row, 0, len(rows))
	rejected = make([]*domain.Row, 0)

	for _, r := range rows {
		row := r.Clone()
		row.RejectionReasons = s.reasons(row, evalDate)
		row.Qualified = len(row.RejectionReasons) == 0
		if row.Qualified {
			qualified = append(qualified, row)
		} else {
			rejected = append(rejected, row)
		}
	}

	return qualified, rejected
}

// reasons evaluates every configured rule against one row. Missing data
// fails the rule that needs it (fail-closed): absence never passes a row
// by default.
func (s *Stage) reasons(row *domain.Row, evalDate time.Time) []string {
	var out []string
	cfg := s.cfg

	if cfg.PriceMin > 0 || cfg.PriceMax > 0 {
		if row.Price == nil || !withinPriceRange(*row.Price, cfg.PriceMin, cfg.PriceMax) {
			out = append(out, ReasonPriceRange)
		}
	}

	if cfg.AvgVolMin > 0 {
		if row.AvgVolume3M == nil || *row.AvgVolume3M < cfg.AvgVolMin {
			out = append(out, ReasonAvgVolume)
		}
	}

	if cfg.RelVolMin > 0 {
		if row.RelVolume == nil || *row.RelVolume < cfg.RelVolMin {
			out = append(out, ReasonRelVolume)
		}
	}

	if cfg.FloatMin > 0 {
		if row.FloatShares == nil || *row.FloatShares < cfg.FloatMin {
			out = append(out, ReasonFloat)
		}
	}

	if cfg.EarningsExcludeWindowDays > 0 {
		if row.EarningsDate == nil || cfg.EarningsWindowContains(*row.EarningsDate, evalDate) {
			out = append(out, ReasonEarningsWindow)
		}
	}

	if len(cfg.ExcludeExchanges) > 0 {
		if row.Exchange == "" || containsFold(cfg.ExcludeExchanges, row.Exchange) {
			out = append(out, ReasonExchange)
		}
	}

	if len(cfg.ExcludeCountries) > 0 {
		if row.Country == "" || containsFold(cfg.ExcludeCountries, row.Country) {
			out = append(out, ReasonCountry)
		}
	}

	if s.screen != nil {
		out = append(out, s.screen.Reasons(row)...)
	}

	return out
}

func withinPriceRange(price, min, max float64) bool {
	if min > 0 && price < min {
		return false
	}
	if max > 0 && price > max {
		return false
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
