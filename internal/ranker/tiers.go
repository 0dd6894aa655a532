package ranker

import "github.com/opensource-finance/premarket/internal/domain"

// AssignTier maps a composite score onto a tier label. A score must
// strictly exceed a boundary to earn the better tier; exactly hitting a
// boundary resolves to the lower one. Unconfigured boundaries fall back
// to the defaults.
func AssignTier(score float64, b domain.TierBoundaries) string {
	if b.A == 0 && b.B == 0 && b.C == 0 {
		b = domain.DefaultStrategy().Premarket.Tiers
	}
	switch {
	case score > b.A:
		return domain.TierA
	case score > b.B:
		return domain.TierB
	case score > b.C:
		return domain.TierC
	}
	return domain.TierD
}
