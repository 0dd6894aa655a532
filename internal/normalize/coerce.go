package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

// earningsDateFormat is the single date layout the coercion layer accepts.
const earningsDateFormat = "2006-01-02"

// Coerce parses every canonical record into a typed row. Coercion is
// total: it always returns one row per record, never drops a row and
// never returns an error. A cell that fails to parse yields an absent
// value; warnings counts those failures across all rows and fields, for
// observability only.
func Coerce(records []domain.CanonicalRecord) (rows []*domain.Row, warnings int) {
	rows = make([]*domain.Row, 0, len(records))
	for _, rec := range records {
		row, w := coerceRecord(rec)
		rows = append(rows, row)
		warnings += w
	}
	return rows, warnings
}

func coerceRecord(rec domain.CanonicalRecord) (*domain.Row, int) {
	c := coercer{rec: rec}

	row := &domain.Row{
		Ticker:   strings.TrimSpace(rec[FieldTicker]),
		Company:  strings.TrimSpace(rec[FieldCompany]),
		Sector:   strings.TrimSpace(rec[FieldSector]),
		Industry: strings.TrimSpace(rec[FieldIndustry]),
		Exchange: strings.TrimSpace(rec[FieldExchange]),
		Country:  strings.TrimSpace(rec[FieldCountry]),

		MarketCap:           c.float(FieldMarketCap),
		PE:                  c.float(FieldPE),
		Price:               c.float(FieldPrice),
		PreviousClose:       c.float(FieldPreviousClose),
		ChangePct:           c.percent(FieldChangePct),
		Volume:              c.int(FieldVolume),
		AvgVolume3M:         c.int(FieldAvgVolume3M),
		RelVolume:           c.float(FieldRelVolume),
		FloatShares:         c.int(FieldFloatShares),
		ShortFloatPct:       c.percent(FieldShortFloatPct),
		AfterHoursChangePct: c.percent(FieldAfterHoursPct),
		Week52Range:         c.rng(FieldWeek52Range),
		Week52RangeRaw:      strings.TrimSpace(rec[FieldWeek52Range]),
		EarningsDate:        c.date(FieldEarningsDate),
		AnalystRecom:        strings.TrimSpace(rec[FieldAnalystRecom]),
		InsiderTransPct:     c.percent(FieldInsiderTrans),
		InstitutionalPct:    c.percent(FieldInstitutionTrans),
	}

	return row, c.warnings
}

// coercer applies field parsers against one record, accumulating parse
// failures. Absent markers ("N/A", "-", blanks) are not failures.
type coercer struct {
	rec      domain.CanonicalRecord
	warnings int
}

func (c *coercer) float(field string) *float64 {
	v, ok := ParseFloat(c.rec[field])
	if !ok {
		c.warnings++
	}
	return v
}

func (c *coercer) percent(field string) *float64 {
	v, ok := ParsePercent(c.rec[field])
	if !ok {
		c.warnings++
	}
	return v
}

func (c *coercer) int(field string) *int64 {
	v, ok := ParseInt(c.rec[field])
	if !ok {
		c.warnings++
	}
	return v
}

func (c *coercer) rng(field string) *domain.Range {
	v, ok := ParseRange(c.rec[field])
	if !ok {
		c.warnings++
	}
	return v
}

func (c *coercer) date(field string) *time.Time {
	v, ok := ParseDate(c.rec[field])
	if !ok {
		c.warnings++
	}
	return v
}

// ParseFloat parses a numeric cell. Thousands separators, currency symbols
// and percent signs are stripped; "N/A", "NA", "-" and blank cells are
// absent. The boolean reports whether the cell was well-formed: false
// means a malformed value (absent result plus a warning at the caller),
// true covers both successes and legitimate absences.
func ParseFloat(s string) (*float64, bool) {
	stripped := strings.TrimSpace(s)
	if isAbsent(stripped) {
		return nil, true
	}

	stripped = strings.NewReplacer(",", "", "$", "", "%", "").Replace(stripped)
	v, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// ParsePercent parses a percent cell into a plain percentage number:
// "5%" yields 5.0, not 0.05.
func ParsePercent(s string) (*float64, bool) {
	return ParseFloat(strings.ReplaceAll(s, "%", ""))
}

// ParseInt parses an integer cell, truncating any fractional part toward
// zero ("1.9" yields 1, "-1.9" yields -1).
func ParseInt(s string) (*int64, bool) {
	f, ok := ParseFloat(s)
	if f == nil {
		return nil, ok
	}
	v := int64(*f)
	return &v, true
}

// ParseRange parses a "<low> - <high>" cell by splitting on the first
// literal hyphen. Absent when the split does not yield exactly two
// non-empty parts, either side fails to parse, or the bounds are equal
// (a degenerate range carries no positional information).
func ParseRange(s string) (*domain.Range, bool) {
	stripped := strings.TrimSpace(s)
	if isAbsent(stripped) {
		return nil, true
	}

	lowStr, highStr, found := strings.Cut(stripped, "-")
	lowStr = strings.TrimSpace(lowStr)
	highStr = strings.TrimSpace(highStr)
	if !found || lowStr == "" || highStr == "" {
		return nil, false
	}

	low, lowOK := ParseFloat(lowStr)
	high, highOK := ParseFloat(highStr)
	if low == nil || high == nil {
		return nil, lowOK && highOK
	}
	if *low == *high {
		return nil, false
	}
	return &domain.Range{Low: *low, High: *high}, true
}

// ParseDate parses a date cell in the single accepted layout (2006-01-02).
func ParseDate(s string) (*time.Time, bool) {
	stripped := strings.TrimSpace(s)
	if isAbsent(stripped) {
		return nil, true
	}

	t, err := time.Parse(earningsDateFormat, stripped)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func isAbsent(s string) bool {
	switch strings.ToUpper(s) {
	case "", "N/A", "NA", "-":
		return true
	}
	return false
}
