package persistence

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is one stored conversation row. StateJSON carries the full
// engine state as an opaque blob; the stage column is denormalized for
// listing and filtering.
type Conversation struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Stage     string    `json:"stage"`
	StateJSON string    `json:"-"`
}

// StoredMessage is one transcript entry as stored.
type StoredMessage struct {
	CreatedAt      time.Time `json:"created_at"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
}

// Lead is the sales-facing summary of a conversation, written once the
// visitor sees the booking link.
type Lead struct {
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ConversationID  string    `json:"conversation_id"`
	BusinessType    string    `json:"business_type"`
	IdentifiedTask  string    `json:"identified_task"`
	PartnershipTier string    `json:"partnership_tier"`
	TeamSize        int       `json:"team_size"`
	CalendlyShown   bool      `json:"calendly_shown"`
}

// ConversationSummary is a conversation row plus its message count, for
// the admin listing.
type ConversationSummary struct {
	Conversation
	MessageCount int `json:"message_count"`
}

// UsageRecord is one day's accumulated token usage for one model.
type UsageRecord struct {
	Day              string  `json:"day"`
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// GenerateConversationID creates a unique conversation identifier.
func GenerateConversationID() string {
	return "conv-" + uuid.New().String()
}

// GenerateMessageID creates a unique message identifier.
func GenerateMessageID() string {
	return "msg-" + uuid.New().String()
}
