package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", "Here you go:\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapCodeFence(tt.in))
		})
	}
}

func TestParseBusinessInfo(t *testing.T) {
	info, err := parseBusinessInfo("```json\n{\"business_type\":\"bakery\",\"team_size\":4,\"biggest_challenge\":\"orders\",\"time_wasters\":[\"invoicing\"],\"current_tools\":[\"Sheets\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "bakery", info.BusinessType)
	assert.Equal(t, 4, info.TeamSize)
	assert.Equal(t, []string{"invoicing"}, info.TimeWasters)

	// Null team_size parses as zero.
	info, err = parseBusinessInfo(`{"business_type":"bakery","team_size":null}`)
	require.NoError(t, err)
	assert.Zero(t, info.TeamSize)

	// Garbage yields the zero record and an error.
	info, err = parseBusinessInfo("I could not find any structured data.")
	assert.Error(t, err)
	assert.Equal(t, BusinessInfo{}, info)
}

func TestBusinessInfoMerge(t *testing.T) {
	existing := BusinessInfo{
		BusinessType:     "bakery",
		TeamSize:         4,
		BiggestChallenge: "order volume",
		TimeWasters:      []string{"invoicing"},
	}

	// Empty fields in a fresh extraction never erase known values.
	existing.Merge(BusinessInfo{})
	assert.Equal(t, "bakery", existing.BusinessType)
	assert.Equal(t, 4, existing.TeamSize)
	assert.Equal(t, []string{"invoicing"}, existing.TimeWasters)

	// Non-empty fields overwrite.
	existing.Merge(BusinessInfo{TeamSize: 6, CurrentTools: []string{"Sheets"}})
	assert.Equal(t, 6, existing.TeamSize)
	assert.Equal(t, "bakery", existing.BusinessType)
	assert.Equal(t, []string{"Sheets"}, existing.CurrentTools)
}

func TestParseProposal(t *testing.T) {
	p, err := parseProposal("```json\n{\"agent_name\":\"Invoice Autopilot\",\"description\":\"d\",\"time_saved\":\"5h/week\",\"integrations\":[\"Email\"],\"success_metric\":\"m\",\"delivery_time\":\"2 weeks\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Invoice Autopilot", p.AgentName)

	// A proposal without a name is unusable.
	_, err = parseProposal(`{"description":"d"}`)
	assert.Error(t, err)

	_, err = parseProposal("no json here")
	assert.Error(t, err)
}

func TestFallbackProposalRendersCleanly(t *testing.T) {
	p := fallbackProposal()
	out := formatProposal(&p)
	assert.Contains(t, out, "Process Automation Assistant")
	assert.Contains(t, out, "Email, Spreadsheets")
}
