package discovery

import "strings"

// Tier is one of the three discrete partnership levels.
type Tier string

// Partnership tiers.
const (
	TierStarter    Tier = "starter"
	TierGrowth     Tier = "growth"
	TierEnterprise Tier = "enterprise"
)

// Title returns the capitalized display name.
func (t Tier) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// DetermineTier maps accumulated business attributes to a partnership
// tier. Pure and deterministic; the proposal is part of the contract for
// future extension but unused by the current rules. A missing team size is
// treated as zero.
func DetermineTier(info BusinessInfo, _ *MVPProposal) Tier {
	switch {
	case info.TeamSize > 50:
		return TierEnterprise
	case info.TeamSize > 15 || len(info.TimeWasters) > 3:
		return TierGrowth
	default:
		return TierStarter
	}
}
