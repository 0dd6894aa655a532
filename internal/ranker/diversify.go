package ranker

import (
	"math"
	"sort"

	"github.com/opensource-finance/premarket/internal/domain"
)

// SortRows orders rows by score descending, then dollar turnover
// descending, then ticker ascending. The three-key order is total over
// distinct tickers, so equal inputs always produce identical rankings.
func SortRows(rows []*domain.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].Turnover() != rows[j].Turnover() {
			return rows[i].Turnover() > rows[j].Turnover()
		}
		return rows[i].Ticker < rows[j].Ticker
	})
}

// Select picks up to topN rows from the sorted candidates while limiting
// any single sector to ceil(maxFraction*topN) slots. When the cap leaves
// the list short and the fill policy is relaxed, a second pass fills the
// remaining slots from the skipped candidates in rank order; the strict
// policy returns the short list as-is. Selected rows are clones carrying
// dense 1-based ranks.
func Select(rows []*domain.Row, topN int, maxFraction float64, policy domain.SelectionPolicy) []*domain.Row {
	if topN <= 0 || len(rows) == 0 {
		return nil
	}

	sectorCap := topN
	if maxFraction > 0 && maxFraction < 1 {
		sectorCap = int(math.Ceil(maxFraction * float64(topN)))
	}

	selected := make([]*domain.Row, 0, topN)
	var skipped []*domain.Row
	perSector := make(map[string]int)

	for _, row := range rows {
		if len(selected) == topN {
			break
		}
		if perSector[row.Sector] >= sectorCap {
			skipped = append(skipped, row)
			continue
		}
		perSector[row.Sector]++
		selected = append(selected, row)
	}

	if policy.Fill != domain.FillStrict {
		for _, row := range skipped {
			if len(selected) == topN {
				break
			}
			selected = append(selected, row)
		}
	}

	out := make([]*domain.Row, len(selected))
	for i, row := range selected {
		c := row.Clone()
		c.Rank = i + 1
		out[i] = c
	}
	return out
}
