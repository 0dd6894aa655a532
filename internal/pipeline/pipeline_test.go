package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/premarket/internal/domain"
	"github.com/opensource-finance/premarket/internal/filters"
	"github.com/opensource-finance/premarket/internal/news"
)

var evalDate = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// fixtureRecords is the three-candidate export: two qualifying rows in
// different sectors and one OTC row the exchange filter rejects.
func fixtureRecords() []domain.RawRecord {
	return []domain.RawRecord{
		{
			"Ticker": "AAA", "Sector": "Technology", "Exchange": "NASD",
			"Price": "25.00", "Prev Close": "24.00", "Change": "4.17%",
			"Volume": "2,000,000", "Average Volume (3m)": "1,000,000",
			"Relative Volume": "2.0", "Float": "10,000,000",
			"Earnings Date": "2099-01-01",
		},
		{
			"Ticker": "BBB", "Sector": "Healthcare", "Exchange": "NYSE",
			"Price": "45.00", "Prev Close": "44.10", "Change": "2.04%",
			"Volume": "900,000", "Average Volume (3m)": "800,000",
			"Relative Volume": "1.6", "Float": "25,000,000",
			"Earnings Date": "2099-01-01",
		},
		{
			"Ticker": "CCC", "Sector": "Technology", "Exchange": "OTC",
			"Price": "10.00", "Prev Close": "9.95", "Change": "0.50%",
			"Volume": "850,000", "Average Volume (3m)": "700,000",
			"Relative Volume": "1.7", "Float": "8,000,000",
			"Earnings Date": "2099-01-01",
		},
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(domain.DefaultStrategy(), nil, 2)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	return p
}

func tickersOf(rows []*domain.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Ticker
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.RunTopN(context.Background(), fixtureRecords(), evalDate, 2)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.RunID == "" {
		t.Error("missing run ID")
	}
	if result.Date != "2025-06-02" {
		t.Errorf("date = %s", result.Date)
	}
	if result.RawRows != 3 {
		t.Errorf("raw rows = %d, want 3", result.RawRows)
	}

	// Filter partition conserves the input.
	if len(result.Qualified)+len(result.Rejected) != 3 {
		t.Fatalf("partition lost rows: %d qualified, %d rejected",
			len(result.Qualified), len(result.Rejected))
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Ticker != "CCC" {
		t.Fatalf("rejected = %v, want [CCC]", tickersOf(result.Rejected))
	}
	if got := result.Rejected[0].RejectionReasons; len(got) != 1 || got[0] != filters.ReasonExchange {
		t.Errorf("CCC rejection reasons = %v", got)
	}

	if len(result.Selection) != 2 {
		t.Fatalf("selection length = %d, want 2", len(result.Selection))
	}
	for i, row := range result.Selection {
		if row.Rank != i+1 {
			t.Errorf("rank of %s = %d, want %d", row.Ticker, row.Rank, i+1)
		}
		if row.Tier == "" {
			t.Errorf("%s has no tier", row.Ticker)
		}
	}

	// Both selected symbols appear in the scored table.
	scored := map[string]bool{}
	for _, row := range result.Scored {
		scored[row.Ticker] = true
	}
	for _, row := range result.Selection {
		if !scored[row.Ticker] {
			t.Errorf("selected %s missing from scored table", row.Ticker)
		}
	}

	if result.EmptyReason() != domain.EmptyNone {
		t.Errorf("empty reason = %q", result.EmptyReason())
	}

	for _, stage := range []string{"normalize", "coerce", "derive", "filter", "score", "select"} {
		if _, ok := result.TimingsSec[stage]; !ok {
			t.Errorf("missing timing for stage %s", stage)
		}
	}
}

func TestRunScoredSortOrder(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.Run(context.Background(), fixtureRecords(), evalDate)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i := 1; i < len(result.Scored); i++ {
		if result.Scored[i-1].Score < result.Scored[i].Score {
			t.Fatalf("scored table out of order at %d: %v", i, tickersOf(result.Scored))
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.Run(context.Background(), nil, evalDate)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.EmptyReason() != domain.EmptyInput {
		t.Errorf("empty reason = %q, want %q", result.EmptyReason(), domain.EmptyInput)
	}
	if len(result.Selection) != 0 || len(result.Scored) != 0 {
		t.Error("empty input produced rows")
	}
}

func TestRunNoQualified(t *testing.T) {
	strategy := domain.DefaultStrategy()
	strategy.Premarket.RelVolMin = 50 // nothing passes

	p, err := New(strategy, nil, 2)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	result, err := p.Run(context.Background(), fixtureRecords(), evalDate)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.EmptyReason() != domain.EmptyNoQualified {
		t.Errorf("empty reason = %q, want %q", result.EmptyReason(), domain.EmptyNoQualified)
	}
	if len(result.Rejected) != 3 {
		t.Errorf("rejected = %d, want 3", len(result.Rejected))
	}
}

func TestRunMissingEarningsDateRejected(t *testing.T) {
	records := fixtureRecords()
	delete(records[0], "Earnings Date") // AAA loses its earnings date

	p := newTestPipeline(t)

	result, err := p.Run(context.Background(), records, evalDate)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var aaa *domain.Row
	for _, row := range result.Rejected {
		if row.Ticker == "AAA" {
			aaa = row
		}
	}
	if aaa == nil {
		t.Fatal("AAA with no earnings date must be rejected under the default window")
	}
	if len(aaa.RejectionReasons) != 1 || aaa.RejectionReasons[0] != filters.ReasonEarningsWindow {
		t.Errorf("reasons = %v, want [%s]", aaa.RejectionReasons, filters.ReasonEarningsWindow)
	}
}

func TestRunTopNOverride(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.RunTopN(context.Background(), fixtureRecords(), evalDate, 1)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Selection) != 1 {
		t.Fatalf("selection length = %d, want 1", len(result.Selection))
	}
}

func TestRunWithNewsSignal(t *testing.T) {
	prober := &news.StaticProber{Signals: map[string]*domain.NewsSignal{
		"AAA": {Symbol: "AAA", FreshnessHours: domain.Float(2)},
	}}
	svc := news.NewService(nil, prober, domain.NewsConfig{Enabled: true, FreshnessHours: 24})

	p, err := New(domain.DefaultStrategy(), svc, 2)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	result, err := p.Run(context.Background(), fixtureRecords(), evalDate)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var aaa *domain.Row
	for _, row := range result.Scored {
		if row.Ticker == "AAA" {
			aaa = row
		}
	}
	if aaa == nil {
		t.Fatal("AAA missing from scored table")
	}
	if aaa.NewsFreshScore <= 0 {
		t.Errorf("AAA news score = %v, want > 0", aaa.NewsFreshScore)
	}
	if aaa.Features.NewsFresh <= 0 {
		t.Errorf("AAA news feature = %v, want > 0", aaa.Features.NewsFresh)
	}
}

func TestRunIdempotent(t *testing.T) {
	p := newTestPipeline(t)

	a, err := p.Run(context.Background(), fixtureRecords(), evalDate)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	b, err := p.Run(context.Background(), fixtureRecords(), evalDate)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if len(a.Scored) != len(b.Scored) {
		t.Fatalf("scored lengths differ: %d vs %d", len(a.Scored), len(b.Scored))
	}
	for i := range a.Scored {
		if a.Scored[i].Ticker != b.Scored[i].Ticker || a.Scored[i].Score != b.Scored[i].Score {
			t.Errorf("run not deterministic at %d: %s/%v vs %s/%v",
				i, a.Scored[i].Ticker, a.Scored[i].Score, b.Scored[i].Ticker, b.Scored[i].Score)
		}
	}
}
