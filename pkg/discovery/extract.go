package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// renderTranscript flattens a transcript into role-prefixed lines for
// inclusion in an extraction prompt.
func renderTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for i := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", messages[i].Role, messages[i].Content))
	}
	return strings.Join(lines, "\n")
}

// extractionPrompt builds the completion prompt asking for structured
// business attributes.
func extractionPrompt(messages []Message) string {
	return fmt.Sprintf(`Analyze the following conversation and extract business information.
Return a JSON object with these fields:
- business_type: what kind of business they run
- team_size: number of employees (null if not mentioned)
- biggest_challenge: their main operational challenge
- time_wasters: list of tasks that waste time
- current_tools: list of tools/software they use

Conversation:
%s

JSON:`, renderTranscript(messages))
}

// unwrapCodeFence strips an optional markdown code fence from a completion
// result, returning the inner content. Unfenced content passes through
// trimmed.
func unwrapCodeFence(s string) string {
	if idx := strings.Index(s, "```json"); idx != -1 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(s)
}

// parseBusinessInfo parses a completion result into a BusinessInfo record.
// Any parse or type failure yields the zero record and an error; callers
// treat that as "no data", never as a failed turn.
func parseBusinessInfo(content string) (BusinessInfo, error) {
	var info BusinessInfo
	raw := unwrapCodeFence(content)
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return BusinessInfo{}, fmt.Errorf("failed to parse business info: %w", err)
	}
	return info, nil
}
