// Package discovery implements the staged sales-discovery conversation
// flow: a deterministic stage machine that walks a visitor from "tell me
// about your business" to a booked demo, calling the completion service for
// extraction and drafting along the way.
package discovery

import (
	"fmt"
	"time"
)

// Stage is a named position in the fixed conversation sequence.
type Stage string

// Conversation stages, in flow order.
const (
	StageStart      Stage = "start"
	StageUnderstand Stage = "understand"
	StageIdentify   Stage = "identify"
	StageScope      Stage = "scope"
	StagePropose    Stage = "propose"
	StageRecommend  Stage = "recommend"
	StageBook       Stage = "book"
	StageComplete   Stage = "complete"
)

// stageOrder defines the fixed total order over stages. The engine never
// moves a conversation backwards under this order.
//
//nolint:gochecknoglobals // Static stage ordering
var stageOrder = map[Stage]int{
	StageStart:      0,
	StageUnderstand: 1,
	StageIdentify:   2,
	StageScope:      3,
	StagePropose:    4,
	StageRecommend:  5,
	StageBook:       6,
	StageComplete:   7,
}

// stageTransitions is the canonical transition map for the discovery flow.
// understand is the only stage that may repeat.
//
//nolint:gochecknoglobals // Static transition table
var stageTransitions = map[Stage][]Stage{
	StageStart:      {StageUnderstand},
	StageUnderstand: {StageUnderstand, StageIdentify},
	StageIdentify:   {StageScope},
	StageScope:      {StagePropose},
	StagePropose:    {StageRecommend},
	StageRecommend:  {StageBook},
	StageBook:       {StageComplete},
	StageComplete:   {},
}

// Ordinal returns the stage's position in the fixed total order. Unknown
// stages sort before start.
func (s Stage) Ordinal() int {
	if ord, ok := stageOrder[s]; ok {
		return ord
	}
	return -1
}

// Terminal reports whether the stage ends the conversation.
func (s Stage) Terminal() bool {
	return s == StageComplete
}

// IsValidTransition checks a transition against the canonical map.
func IsValidTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Source tags where a conversation originated.
type Source string

// Conversation sources.
const (
	SourceWidget Source = "widget"
	SourceEmail  Source = "email"
	SourceAPI    Source = "api"
)

// ParseSource validates a source tag, defaulting to api.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceWidget, SourceEmail, SourceAPI:
		return Source(s)
	default:
		return SourceAPI
	}
}

// Role tags who authored a transcript message.
type Role string

// Message roles.
const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// BusinessInfo holds business attributes extracted from the transcript.
type BusinessInfo struct {
	BusinessType     string   `json:"business_type"`
	TeamSize         int      `json:"team_size"`
	BiggestChallenge string   `json:"biggest_challenge"`
	TimeWasters      []string `json:"time_wasters"`
	CurrentTools     []string `json:"current_tools"`
}

// Merge folds a fresh extraction into the receiver, keeping existing values
// for any field the new extraction left empty. A single bad extraction must
// never erase previously known-good fields.
func (b *BusinessInfo) Merge(fresh BusinessInfo) {
	if fresh.BusinessType != "" {
		b.BusinessType = fresh.BusinessType
	}
	if fresh.TeamSize != 0 {
		b.TeamSize = fresh.TeamSize
	}
	if fresh.BiggestChallenge != "" {
		b.BiggestChallenge = fresh.BiggestChallenge
	}
	if len(fresh.TimeWasters) > 0 {
		b.TimeWasters = fresh.TimeWasters
	}
	if len(fresh.CurrentTools) > 0 {
		b.CurrentTools = fresh.CurrentTools
	}
}

// MVPProposal is the structured proposal drafted in the propose stage.
type MVPProposal struct {
	AgentName     string   `json:"agent_name"`
	Description   string   `json:"description"`
	TimeSaved     string   `json:"time_saved"`
	Integrations  []string `json:"integrations"`
	SuccessMetric string   `json:"success_metric"`
	DeliveryTime  string   `json:"delivery_time"`
}

// ConversationState is the full per-conversation state record. It is
// created on the first message and mutated only by the Engine.
type ConversationState struct {
	ConversationID  string       `json:"conversation_id"`
	Source          Source       `json:"source"`
	Stage           Stage        `json:"stage"`
	Messages        []Message    `json:"messages"`
	QuestionsAsked  int          `json:"questions_asked"`
	BusinessInfo    BusinessInfo `json:"business_info"`
	IdentifiedTask  string       `json:"identified_task,omitempty"`
	MVPProposal     *MVPProposal `json:"mvp_proposal,omitempty"`
	PartnershipTier Tier         `json:"partnership_tier,omitempty"`
	CalendlyShown   bool         `json:"calendly_shown"`
	StartedAt       time.Time    `json:"started_at"`
}

// NewConversationState initializes state for a fresh conversation.
func NewConversationState(conversationID string, source Source) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		Source:         source,
		Stage:          StageStart,
		Messages:       []Message{},
		StartedAt:      time.Now().UTC(),
	}
}

// AppendHuman appends a visitor message to the transcript.
func (s *ConversationState) AppendHuman(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleHuman, Content: content})
}

// AppendAI appends an agent message to the transcript.
func (s *ConversationState) AppendAI(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAI, Content: content})
}

// LastHumanMessage returns the most recent visitor-authored message.
func (s *ConversationState) LastHumanMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// AdvanceTo moves the conversation to a new stage, enforcing that stages
// never regress under the fixed total order.
func (s *ConversationState) AdvanceTo(stage Stage) error {
	if stage.Ordinal() < s.Stage.Ordinal() {
		return fmt.Errorf("stage cannot regress from %s to %s", s.Stage, stage)
	}
	s.Stage = stage
	return nil
}
