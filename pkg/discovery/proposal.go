package discovery

import (
	"encoding/json"
	"fmt"
)

// proposalPrompt builds the completion prompt asking for a structured MVP
// agent proposal grounded in everything learned so far.
func proposalPrompt(info BusinessInfo, identifiedTask string, messages []Message) string {
	infoJSON, _ := json.Marshal(info)
	return fmt.Sprintf(`Based on this discovery conversation, design a custom AI agent proposal.

Business info: %s
Identified task to automate: %s

Conversation:
%s

Return a JSON object with these fields:
- agent_name: a catchy name for the agent (e.g. "Invoice Autopilot")
- description: one sentence on what the agent does
- time_saved: estimated time saved (e.g. "12 hours/week")
- integrations: list of tools it connects to
- success_metric: one measurable outcome
- delivery_time: how long to build (e.g. "2-3 weeks")

JSON:`, infoJSON, identifiedTask, renderTranscript(messages))
}

// parseProposal parses a completion result into an MVPProposal. Callers fall
// back to fallbackProposal on any error.
func parseProposal(content string) (MVPProposal, error) {
	var p MVPProposal
	raw := unwrapCodeFence(content)
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return MVPProposal{}, fmt.Errorf("failed to parse proposal: %w", err)
	}
	if p.AgentName == "" {
		return MVPProposal{}, fmt.Errorf("proposal missing agent name")
	}
	return p, nil
}

// fallbackProposal returns the generic proposal used when the model cannot
// produce a usable one.
func fallbackProposal() MVPProposal {
	return MVPProposal{
		AgentName:     "Process Automation Assistant",
		Description:   "Automates your most time-consuming task with AI-powered intelligence.",
		TimeSaved:     "10+ hours/week",
		Integrations:  []string{"Email", "Spreadsheets"},
		SuccessMetric: "90% reduction in manual processing time",
		DeliveryTime:  "2-3 weeks",
	}
}
