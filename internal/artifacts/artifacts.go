// Package artifacts assembles and writes the per-date run outputs:
// full_watchlist.json, topN.json, watchlist.csv and run_summary.json.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Artifact file names inside the per-date output directory.
const (
	FileFullWatchlist = "full_watchlist.json"
	FileTopN          = "topN.json"
	FileWatchlist     = "watchlist.csv"
	FileRunSummary    = "run_summary.json"
)

// Build assembles the persistable artifacts from a run result. Absent
// numeric fields are zero-filled here, at presentation time; the result
// rows themselves keep their nil pointers.
func Build(result *domain.RunResult, cfg domain.PremarketConfig) *domain.RunArtifacts {
	generatedAt := result.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00")

	topN := domain.TopNArtifact{
		GeneratedAt: generatedAt,
		TopN:        len(result.Selection),
		Symbols:     make([]string, 0, len(result.Selection)),
		Ranking:     make([]domain.RankedSymbol, 0, len(result.Selection)),
	}
	watchlist := make([]domain.WatchlistEntry, 0, len(result.Selection))

	for _, row := range result.Selection {
		topN.Symbols = append(topN.Symbols, row.Ticker)
		topN.Ranking = append(topN.Ranking, domain.RankedSymbol{
			Rank:   row.Rank,
			Symbol: row.Ticker,
			Score:  row.Score,
			Tier:   row.Tier,
		})
		watchlist = append(watchlist, domain.WatchlistEntry{
			Rank:      row.Rank,
			Symbol:    row.Ticker,
			Score:     row.Score,
			Tier:      row.Tier,
			GapPct:    zeroFill(row.GapPct),
			RelVolume: zeroFill(row.RelVolume),
			Tags:      append([]string(nil), row.Tags...),
		})
	}

	// The full table keeps rejected rows after the scored ones so filter
	// outcomes stay observable in the artifact.
	full := make([]*domain.Row, 0, len(result.Scored)+len(result.Rejected))
	full = append(full, result.Scored...)
	full = append(full, result.Rejected...)

	return &domain.RunArtifacts{
		Date:          result.Date,
		GeneratedAt:   generatedAt,
		FullWatchlist: full,
		TopN:          topN,
		Watchlist:     watchlist,
		Summary: domain.RunSummary{
			Date:       result.Date,
			RawRows:    result.RawRows,
			Qualified:  len(result.Scored),
			TopN:       len(result.Selection),
			Warnings:   result.CoercionWarnings,
			Filters:    cfg,
			TimingsSec: result.TimingsSec,
			Notes:      result.Notes,
			Tiers:      result.TierCounts,
		},
	}
}

// Write persists the artifacts into outputDir/<date>/ and returns the
// directory path.
func Write(artifacts *domain.RunArtifacts, outputDir string) (string, error) {
	dir := filepath.Join(outputDir, artifacts.Date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if err := writeJSON(artifacts.FullWatchlist, filepath.Join(dir, FileFullWatchlist)); err != nil {
		return "", err
	}
	if err := writeJSON(artifacts.TopN, filepath.Join(dir, FileTopN)); err != nil {
		return "", err
	}
	if err := writeWatchlistCSV(artifacts.Watchlist, filepath.Join(dir, FileWatchlist)); err != nil {
		return "", err
	}
	if err := writeJSON(artifacts.Summary, filepath.Join(dir, FileRunSummary)); err != nil {
		return "", err
	}

	return dir, nil
}

func writeJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeWatchlistCSV(entries []domain.WatchlistEntry, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"rank", "symbol", "score", "tier", "gap_pct", "rel_volume", "tags"}); err != nil {
		return fmt.Errorf("write %s header: %w", filepath.Base(path), err)
	}

	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.Rank),
			e.Symbol,
			strconv.FormatFloat(e.Score, 'f', 4, 64),
			e.Tier,
			strconv.FormatFloat(e.GapPct, 'f', 2, 64),
			strconv.FormatFloat(e.RelVolume, 'f', 2, 64),
			strings.Join(e.Tags, "|"),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write %s row: %w", filepath.Base(path), err)
		}
	}

	w.Flush()
	return w.Error()
}

func zeroFill(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
