package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/premarket/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleArtifacts(date string) *domain.RunArtifacts {
	rowA := &domain.Row{
		Ticker:    "AAA",
		Sector:    "Technology",
		Price:     domain.Float(12.5),
		Qualified: true,
		Score:     0.81,
		Tier:      domain.TierA,
		Rank:      1,
		Tags:      []string{"LOW_FLOAT"},
	}
	rowB := &domain.Row{
		Ticker:           "BBB",
		Sector:           "Energy",
		Qualified:        false,
		RejectionReasons: []string{"price_range"},
	}

	return &domain.RunArtifacts{
		Date:          date,
		GeneratedAt:   date + "T09:00:00Z",
		FullWatchlist: []*domain.Row{rowA, rowB},
		TopN: domain.TopNArtifact{
			GeneratedAt: date + "T09:00:00Z",
			TopN:        1,
			Symbols:     []string{"AAA"},
			Ranking:     []domain.RankedSymbol{{Symbol: "AAA", Score: 0.81}},
		},
		Watchlist: []domain.WatchlistEntry{
			{Rank: 1, Symbol: "AAA", Score: 0.81, Tier: domain.TierA, GapPct: 5.2, RelVolume: 3.1, Tags: []string{"LOW_FLOAT"}},
		},
		Summary: domain.RunSummary{
			Date:      date,
			RawRows:   2,
			Qualified: 1,
			TopN:      1,
			Tiers:     map[string]int{"A": 1},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveRun(ctx, sampleArtifacts("2025-06-02")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := repo.GetRun(ctx, "2025-06-02")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if len(got.FullWatchlist) != 2 {
		t.Errorf("expected 2 full_watchlist rows, got %d", len(got.FullWatchlist))
	}
	// Sorted by score desc, so the qualified row comes first.
	if got.FullWatchlist[0].Ticker != "AAA" {
		t.Errorf("expected AAA first, got %s", got.FullWatchlist[0].Ticker)
	}
	if got.FullWatchlist[0].Price == nil || *got.FullWatchlist[0].Price != 12.5 {
		t.Errorf("row payload did not round-trip: %+v", got.FullWatchlist[0].Price)
	}
	if got.FullWatchlist[1].Qualified {
		t.Error("rejected row came back qualified")
	}
	if len(got.FullWatchlist[1].RejectionReasons) != 1 {
		t.Errorf("rejection reasons lost: %v", got.FullWatchlist[1].RejectionReasons)
	}

	if got.TopN.TopN != 1 || len(got.TopN.Symbols) != 1 || got.TopN.Symbols[0] != "AAA" {
		t.Errorf("top_n did not round-trip: %+v", got.TopN)
	}

	if len(got.Watchlist) != 1 {
		t.Fatalf("expected 1 watchlist entry, got %d", len(got.Watchlist))
	}
	entry := got.Watchlist[0]
	if entry.Symbol != "AAA" || entry.Rank != 1 || entry.Tier != domain.TierA {
		t.Errorf("watchlist entry did not round-trip: %+v", entry)
	}
	if len(entry.Tags) != 1 || entry.Tags[0] != "LOW_FLOAT" {
		t.Errorf("tags did not round-trip: %v", entry.Tags)
	}

	if got.Summary.RawRows != 2 || got.Summary.Tiers["A"] != 1 {
		t.Errorf("summary did not round-trip: %+v", got.Summary)
	}
}

func TestSaveRunReplacesSameDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveRun(ctx, sampleArtifacts("2025-06-02")); err != nil {
		t.Fatalf("first SaveRun failed: %v", err)
	}

	// Re-run the same date with a different selection.
	second := sampleArtifacts("2025-06-02")
	second.FullWatchlist = second.FullWatchlist[:1]
	second.Watchlist[0].Symbol = "CCC"
	second.Summary.RawRows = 1

	if err := repo.SaveRun(ctx, second); err != nil {
		t.Fatalf("second SaveRun failed: %v", err)
	}

	got, err := repo.GetRun(ctx, "2025-06-02")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if len(got.FullWatchlist) != 1 {
		t.Errorf("expected replaced full_watchlist with 1 row, got %d", len(got.FullWatchlist))
	}
	if got.Watchlist[0].Symbol != "CCC" {
		t.Errorf("expected replaced watchlist entry CCC, got %s", got.Watchlist[0].Symbol)
	}
	if got.Summary.RawRows != 1 {
		t.Errorf("expected replaced summary, got %+v", got.Summary)
	}
}

func TestGetRunNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetRun(context.Background(), "1999-01-01")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRunRequiresDate(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.SaveRun(context.Background(), &domain.RunArtifacts{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLatestRunDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestRunDate(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	for _, date := range []string{"2025-05-30", "2025-06-02", "2025-06-01"} {
		if err := repo.SaveRun(ctx, sampleArtifacts(date)); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", date, err)
		}
	}

	latest, err := repo.LatestRunDate(ctx)
	if err != nil {
		t.Fatalf("LatestRunDate failed: %v", err)
	}
	if latest != "2025-06-02" {
		t.Errorf("expected 2025-06-02, got %s", latest)
	}
}

func TestListRunDates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, date := range []string{"2025-05-30", "2025-05-31", "2025-06-01"} {
		if err := repo.SaveRun(ctx, sampleArtifacts(date)); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", date, err)
		}
	}

	dates, err := repo.ListRunDates(ctx, 2)
	if err != nil {
		t.Fatalf("ListRunDates failed: %v", err)
	}

	want := []string{"2025-06-01", "2025-05-31"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i, d := range want {
		if dates[i] != d {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], d)
		}
	}
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
