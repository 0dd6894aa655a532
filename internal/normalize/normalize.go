// Package normalize maps raw screener export columns onto the canonical
// schema and coerces cell text into typed values.
package normalize

import (
	"strings"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Canonical field names produced by NormalizeColumns.
const (
	FieldTicker           = "ticker"
	FieldCompany          = "company"
	FieldSector           = "sector"
	FieldIndustry         = "industry"
	FieldExchange         = "exchange"
	FieldCountry          = "country"
	FieldMarketCap        = "market_cap"
	FieldPE               = "pe"
	FieldPrice            = "price"
	FieldPreviousClose    = "previous_close"
	FieldChangePct        = "change_pct"
	FieldVolume           = "volume"
	FieldAvgVolume3M      = "avg_volume_3m"
	FieldRelVolume        = "rel_volume"
	FieldFloatShares      = "float_shares"
	FieldShortFloatPct    = "short_float_pct"
	FieldAfterHoursPct    = "after_hours_change_pct"
	FieldWeek52Range      = "week52_range"
	FieldEarningsDate     = "earnings_date"
	FieldAnalystRecom     = "analyst_recom"
	FieldInsiderTrans     = "insider_transactions"
	FieldInstitutionTrans = "institutional_transactions"
)

// columnAliases maps canonicalized source headers to canonical field names.
// Keys are in the form produced by canonicalHeader: lower case with all
// punctuation collapsed to single spaces, so "Relative Vol." and
// "relative volume" both resolve.
var columnAliases = map[string]string{
	"ticker":                     FieldTicker,
	"symbol":                     FieldTicker,
	"company":                    FieldCompany,
	"sector":                     FieldSector,
	"industry":                   FieldIndustry,
	"exchange":                   FieldExchange,
	"country":                    FieldCountry,
	"market cap":                 FieldMarketCap,
	"p e":                        FieldPE,
	"pe":                         FieldPE,
	"price":                      FieldPrice,
	"previous close":             FieldPreviousClose,
	"prev close":                 FieldPreviousClose,
	"change":                     FieldChangePct,
	"change from open":           FieldChangePct,
	"volume":                     FieldVolume,
	"average volume 3m":          FieldAvgVolume3M,
	"average volume":             FieldAvgVolume3M,
	"avg volume 3m":              FieldAvgVolume3M,
	"relative volume":            FieldRelVolume,
	"relative vol":               FieldRelVolume,
	"float":                      FieldFloatShares,
	"shs float":                  FieldFloatShares,
	"short float":                FieldShortFloatPct,
	"after hours change":         FieldAfterHoursPct,
	"52 week range":              FieldWeek52Range,
	"earnings date":              FieldEarningsDate,
	"earnings":                   FieldEarningsDate,
	"analyst recom":              FieldAnalystRecom,
	"analyst recommendation":     FieldAnalystRecom,
	"insider transactions":       FieldInsiderTrans,
	"institutional transactions": FieldInstitutionTrans,
}

// NormalizeColumns remaps every row onto the canonical schema. Source
// columns with no matching alias are dropped from the output but reported
// in unmapped (deduplicated, in first-seen order) so callers can log
// schema drift without the normalizer ever failing. Row order and row
// count are preserved exactly.
func NormalizeColumns(raw []domain.RawRecord) (canonical []domain.CanonicalRecord, unmapped []string) {
	canonical = make([]domain.CanonicalRecord, 0, len(raw))
	seen := make(map[string]bool)

	for _, rec := range raw {
		out := make(domain.CanonicalRecord, len(rec))
		for header, value := range rec {
			field, ok := columnAliases[canonicalHeader(header)]
			if !ok {
				if !seen[header] {
					seen[header] = true
					unmapped = append(unmapped, header)
				}
				continue
			}
			out[field] = value
		}
		canonical = append(canonical, out)
	}

	return canonical, unmapped
}

// canonicalHeader lowercases a source header and collapses every run of
// non-alphanumeric characters into a single space, so punctuation and
// whitespace variants of the same header compare equal.
func canonicalHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
