package ranker

import (
	"testing"

	"github.com/opensource-finance/premarket/internal/domain"
)

func scoredRow(ticker, sector string, score, turnover float64) *domain.Row {
	return &domain.Row{
		Ticker:         ticker,
		Sector:         sector,
		Score:          score,
		TurnoverDollar: domain.Float(turnover),
	}
}

func tickers(rows []*domain.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Ticker
	}
	return out
}

func equalTickers(got []*domain.Row, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, r := range got {
		if r.Ticker != want[i] {
			return false
		}
	}
	return true
}

func TestSortRowsThreeKeyOrder(t *testing.T) {
	rows := []*domain.Row{
		scoredRow("DDD", "Tech", 0.50, 1000),
		scoredRow("BBB", "Tech", 0.80, 2000),
		scoredRow("CCC", "Tech", 0.80, 2000), // turnover tie breaks on ticker
		scoredRow("AAA", "Tech", 0.80, 9000), // score tie breaks on turnover
	}

	SortRows(rows)
	if !equalTickers(rows, "AAA", "BBB", "CCC", "DDD") {
		t.Fatalf("order = %v, want [AAA BBB CCC DDD]", tickers(rows))
	}
}

func TestSortRowsAbsentTurnoverSortsLast(t *testing.T) {
	rows := []*domain.Row{
		{Ticker: "AAA", Score: 0.5},
		scoredRow("BBB", "Tech", 0.5, 100),
	}
	SortRows(rows)
	if !equalTickers(rows, "BBB", "AAA") {
		t.Fatalf("order = %v, want [BBB AAA]", tickers(rows))
	}
}

func TestSelectSectorCap(t *testing.T) {
	// top_n=2, max_fraction=0.5 gives a per-sector cap of ceil(1.0)=1,
	// so the second Tech row is skipped in favor of Energy.
	rows := []*domain.Row{
		scoredRow("AAA", "Tech", 0.90, 0),
		scoredRow("BBB", "Tech", 0.85, 0),
		scoredRow("CCC", "Energy", 0.40, 0),
	}

	got := Select(rows, 2, 0.5, domain.SelectionPolicy{Fill: domain.FillRelaxed})
	if !equalTickers(got, "AAA", "CCC") {
		t.Fatalf("selection = %v, want [AAA CCC]", tickers(got))
	}
}

func TestSelectRelaxedFillsFromSkipped(t *testing.T) {
	rows := []*domain.Row{
		scoredRow("AAA", "Tech", 0.90, 0),
		scoredRow("BBB", "Tech", 0.85, 0),
		scoredRow("CCC", "Tech", 0.80, 0),
	}

	got := Select(rows, 2, 0.5, domain.SelectionPolicy{Fill: domain.FillRelaxed})
	if !equalTickers(got, "AAA", "BBB") {
		t.Fatalf("relaxed selection = %v, want [AAA BBB]", tickers(got))
	}
}

func TestSelectStrictStaysShort(t *testing.T) {
	rows := []*domain.Row{
		scoredRow("AAA", "Tech", 0.90, 0),
		scoredRow("BBB", "Tech", 0.85, 0),
		scoredRow("CCC", "Tech", 0.80, 0),
	}

	got := Select(rows, 2, 0.5, domain.SelectionPolicy{Fill: domain.FillStrict})
	if !equalTickers(got, "AAA") {
		t.Fatalf("strict selection = %v, want [AAA]", tickers(got))
	}
}

func TestSelectAssignsDenseRanks(t *testing.T) {
	rows := []*domain.Row{
		scoredRow("AAA", "Tech", 0.90, 0),
		scoredRow("BBB", "Energy", 0.85, 0),
		scoredRow("CCC", "Health", 0.80, 0),
	}

	got := Select(rows, 3, 0.5, domain.SelectionPolicy{Fill: domain.FillRelaxed})
	for i, r := range got {
		if r.Rank != i+1 {
			t.Errorf("rank of %s = %d, want %d", r.Ticker, r.Rank, i+1)
		}
	}
	// Inputs stay unranked.
	for _, r := range rows {
		if r.Rank != 0 {
			t.Errorf("input row %s mutated with rank %d", r.Ticker, r.Rank)
		}
	}
}

func TestSelectNoCapWhenFractionUnset(t *testing.T) {
	rows := []*domain.Row{
		scoredRow("AAA", "Tech", 0.90, 0),
		scoredRow("BBB", "Tech", 0.85, 0),
	}

	got := Select(rows, 2, 0, domain.SelectionPolicy{Fill: domain.FillStrict})
	if !equalTickers(got, "AAA", "BBB") {
		t.Fatalf("selection = %v, want [AAA BBB]", tickers(got))
	}
}

func TestSelectEmptyAndZeroTopN(t *testing.T) {
	if got := Select(nil, 5, 0.5, domain.SelectionPolicy{}); got != nil {
		t.Errorf("Select(nil) = %v, want nil", got)
	}
	rows := []*domain.Row{scoredRow("AAA", "Tech", 0.9, 0)}
	if got := Select(rows, 0, 0.5, domain.SelectionPolicy{}); got != nil {
		t.Errorf("Select(top_n=0) = %v, want nil", got)
	}
}
