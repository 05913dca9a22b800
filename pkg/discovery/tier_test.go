package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineTier(t *testing.T) {
	tests := []struct {
		name string
		info BusinessInfo
		want Tier
	}{
		{
			name: "large team is enterprise",
			info: BusinessInfo{TeamSize: 60},
			want: TierEnterprise,
		},
		{
			name: "boundary team size 51 is enterprise",
			info: BusinessInfo{TeamSize: 51},
			want: TierEnterprise,
		},
		{
			name: "team size 50 is growth territory",
			info: BusinessInfo{TeamSize: 50},
			want: TierGrowth,
		},
		{
			name: "mid team with no wasters is growth",
			info: BusinessInfo{TeamSize: 20},
			want: TierGrowth,
		},
		{
			name: "small team with many wasters is growth",
			info: BusinessInfo{TeamSize: 5, TimeWasters: []string{"a", "b", "c", "d"}},
			want: TierGrowth,
		},
		{
			name: "small team few wasters is starter",
			info: BusinessInfo{TeamSize: 5, TimeWasters: []string{"a", "b", "c"}},
			want: TierStarter,
		},
		{
			name: "empty info defaults to starter",
			info: BusinessInfo{},
			want: TierStarter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineTier(tt.info, nil))
		})
	}
}

func TestTierTitle(t *testing.T) {
	assert.Equal(t, "Starter", TierStarter.Title())
	assert.Equal(t, "Growth", TierGrowth.Title())
	assert.Equal(t, "Enterprise", TierEnterprise.Title())
	assert.Equal(t, "", Tier("").Title())
}
