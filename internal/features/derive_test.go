package features

import (
	"testing"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
)

var evalDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestDerive_GapPct(t *testing.T) {
	tests := []struct {
		name  string
		price *float64
		prev  *float64
		want  *float64
	}{
		{"normal gap", domain.Float(18.5), domain.Float(17.5), domain.Float((18.5 - 17.5) / 17.5 * 100)},
		{"negative gap", domain.Float(9), domain.Float(10), domain.Float(-10)},
		{"absent previous close", domain.Float(18.5), nil, nil},
		{"zero previous close", domain.Float(18.5), domain.Float(0), nil},
		{"absent price", nil, domain.Float(17.5), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Derive([]*domain.Row{{Price: tt.price, PreviousClose: tt.prev}}, evalDate)
			got := rows[0].GapPct
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("gap_pct = %v, want %v", got, tt.want)
			}
			if got != nil && !almostEqual(*got, *tt.want) {
				t.Errorf("gap_pct = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestDerive_Week52Pos(t *testing.T) {
	tests := []struct {
		name  string
		price *float64
		rng   *domain.Range
		want  *float64
	}{
		{"middle", domain.Float(15), &domain.Range{Low: 10, High: 20}, domain.Float(0.5)},
		{"clamped above", domain.Float(25), &domain.Range{Low: 10, High: 20}, domain.Float(1)},
		{"clamped below", domain.Float(5), &domain.Range{Low: 10, High: 20}, domain.Float(0)},
		{"absent range", domain.Float(15), nil, nil},
		{"absent price", nil, &domain.Range{Low: 10, High: 20}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Derive([]*domain.Row{{Price: tt.price, Week52Range: tt.rng}}, evalDate)
			got := rows[0].Week52Pos
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("week52_pos = %v, want %v", got, tt.want)
			}
			if got != nil {
				if *got < 0 || *got > 1 {
					t.Errorf("week52_pos = %v, out of [0,1]", *got)
				}
				if !almostEqual(*got, *tt.want) {
					t.Errorf("week52_pos = %v, want %v", *got, *tt.want)
				}
			}
		})
	}
}

func TestDerive_Turnover(t *testing.T) {
	rows := Derive([]*domain.Row{
		{Price: domain.Float(25), Volume: domain.Int(500_000)},
		{Price: domain.Float(25)},
		{Volume: domain.Int(500_000)},
	}, evalDate)

	if rows[0].TurnoverDollar == nil || *rows[0].TurnoverDollar != 12_500_000 {
		t.Errorf("turnover = %v, want 12500000", rows[0].TurnoverDollar)
	}
	if rows[1].TurnoverDollar != nil || rows[2].TurnoverDollar != nil {
		t.Errorf("turnover should be absent when either input is absent")
	}
}

func TestDerive_Tags(t *testing.T) {
	earnings := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC) // one day after evalDate
	rows := Derive([]*domain.Row{{
		Price:         domain.Float(19),
		PreviousClose: domain.Float(15),
		FloatShares:   domain.Int(10_000_000),
		Week52Range:   &domain.Range{Low: 10, High: 20},
		EarningsDate:  &earnings,
	}}, evalDate)

	got := rows[0].Tags
	want := []string{TagLowFloat, TagExtremeGap, TagEarningsToday, TagWeek52Breakout}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDerive_IdempotentAndNonMutating(t *testing.T) {
	src := []*domain.Row{{
		Ticker:        "AAA",
		Price:         domain.Float(18.5),
		PreviousClose: domain.Float(17.5),
		Volume:        domain.Int(100),
	}}

	first := Derive(src, evalDate)
	second := Derive(src, evalDate)

	if src[0].GapPct != nil {
		t.Errorf("Derive mutated its input")
	}
	if *first[0].GapPct != *second[0].GapPct {
		t.Errorf("Derive is not deterministic")
	}

	// Deriving from already-derived rows changes nothing.
	third := Derive(first, evalDate)
	if *third[0].GapPct != *first[0].GapPct || *third[0].TurnoverDollar != *first[0].TurnoverDollar {
		t.Errorf("Derive is not idempotent")
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
