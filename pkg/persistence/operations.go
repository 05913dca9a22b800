package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"salesbot/pkg/logx"
)

// DatabaseOperations provides high-level database operations for the chat
// service and admin endpoints.
type DatabaseOperations struct {
	db     *sql.DB
	logger *logx.Logger
}

// NewDatabaseOperations creates a new database operations instance.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{
		db:     db,
		logger: logx.NewLogger("persistence"),
	}
}

// UpsertConversation inserts or updates a conversation row, including its
// serialized state blob.
func (ops *DatabaseOperations) UpsertConversation(conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, source, stage, state_json, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			stage = excluded.stage,
			state_json = excluded.state_json,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := ops.db.Exec(query, conv.ID, conv.Source, conv.Stage, conv.StateJSON); err != nil {
		return fmt.Errorf("failed to upsert conversation %s: %w", conv.ID, err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID. Returns sql.ErrNoRows
// wrapped when the conversation does not exist.
func (ops *DatabaseOperations) GetConversation(id string) (*Conversation, error) {
	query := `
		SELECT id, source, stage, state_json, created_at, updated_at
		FROM conversations WHERE id = ?`

	var conv Conversation
	err := ops.db.QueryRow(query, id).Scan(
		&conv.ID, &conv.Source, &conv.Stage, &conv.StateJSON,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return &conv, nil
}

// AppendMessage stores one transcript entry.
func (ops *DatabaseOperations) AppendMessage(msg *StoredMessage) error {
	if msg.ID == "" {
		msg.ID = GenerateMessageID()
	}
	query := `
		INSERT INTO messages (id, conversation_id, role, content)
		VALUES (?, ?, ?, ?)`

	if _, err := ops.db.Exec(query, msg.ID, msg.ConversationID, msg.Role, msg.Content); err != nil {
		return fmt.Errorf("failed to append message to %s: %w", msg.ConversationID, err)
	}
	return nil
}

// GetMessages retrieves a conversation's transcript in chronological order.
func (ops *DatabaseOperations) GetMessages(conversationID string) ([]*StoredMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := ops.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for %s: %w", conversationID, err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*StoredMessage
	for rows.Next() {
		var msg StoredMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message rows error: %w", err)
	}
	return messages, nil
}

// ConversationFilter narrows ListConversations results.
type ConversationFilter struct {
	Source string // Empty matches all sources
	Limit  int    // 0 means default (50)
	Offset int
}

// ListConversations returns conversation summaries newest-first.
func (ops *DatabaseOperations) ListConversations(filter *ConversationFilter) ([]*ConversationSummary, error) {
	limit := 50
	offset := 0
	source := ""
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
		source = filter.Source
	}

	query := `
		SELECT c.id, c.source, c.stage, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c`
	args := []any{}
	if source != "" {
		query += ` WHERE c.source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY c.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := ops.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.Source, &s.Stage, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation rows error: %w", err)
	}
	return summaries, nil
}

// UpsertLead inserts or updates the lead row for a conversation.
func (ops *DatabaseOperations) UpsertLead(lead *Lead) error {
	query := `
		INSERT INTO leads (conversation_id, business_type, team_size, identified_task, partnership_tier, calendly_shown, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(conversation_id) DO UPDATE SET
			business_type = excluded.business_type,
			team_size = excluded.team_size,
			identified_task = excluded.identified_task,
			partnership_tier = excluded.partnership_tier,
			calendly_shown = excluded.calendly_shown,
			updated_at = CURRENT_TIMESTAMP`

	_, err := ops.db.Exec(query, lead.ConversationID, lead.BusinessType, lead.TeamSize,
		lead.IdentifiedTask, lead.PartnershipTier, lead.CalendlyShown)
	if err != nil {
		return fmt.Errorf("failed to upsert lead for %s: %w", lead.ConversationID, err)
	}
	return nil
}

// GetLeads returns all captured leads, newest-first.
func (ops *DatabaseOperations) GetLeads() ([]*Lead, error) {
	query := `
		SELECT conversation_id, business_type, team_size, identified_task, partnership_tier, calendly_shown, created_at, updated_at
		FROM leads ORDER BY updated_at DESC`

	rows, err := ops.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []*Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ConversationID, &l.BusinessType, &l.TeamSize,
			&l.IdentifiedTask, &l.PartnershipTier, &l.CalendlyShown, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lead rows error: %w", err)
	}
	return leads, nil
}

// StaleConversations returns conversations not yet complete whose last
// update is older than the cutoff. The worker uses this for followup
// candidates.
func (ops *DatabaseOperations) StaleConversations(olderThan time.Duration) ([]*Conversation, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		SELECT id, source, stage, state_json, created_at, updated_at
		FROM conversations
		WHERE stage != 'complete' AND updated_at < ?
		ORDER BY updated_at ASC`

	rows, err := ops.db.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.Source, &conv.Stage, &conv.StateJSON,
			&conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale conversation rows error: %w", err)
	}
	return convs, nil
}

// RecordUsage accumulates token usage and cost for a model on a given day.
// Day is a UTC date in YYYY-MM-DD form.
func (ops *DatabaseOperations) RecordUsage(day, model string, promptTokens, completionTokens int64, costUSD float64) error {
	query := `
		INSERT INTO usage_daily (day, model, prompt_tokens, completion_tokens, cost_usd)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day, model) DO UPDATE SET
			prompt_tokens = prompt_tokens + excluded.prompt_tokens,
			completion_tokens = completion_tokens + excluded.completion_tokens,
			cost_usd = cost_usd + excluded.cost_usd`

	if _, err := ops.db.Exec(query, day, model, promptTokens, completionTokens, costUSD); err != nil {
		return fmt.Errorf("failed to record usage for %s/%s: %w", day, model, err)
	}
	return nil
}

// UsageForDay returns the summed usage across all models for a UTC day.
func (ops *DatabaseOperations) UsageForDay(day string) (*UsageRecord, error) {
	query := `
		SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_daily WHERE day = ?`

	rec := &UsageRecord{Day: day}
	err := ops.db.QueryRow(query, day).Scan(&rec.PromptTokens, &rec.CompletionTokens, &rec.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage for %s: %w", day, err)
	}
	return rec, nil
}

// Close closes the underlying database.
func (ops *DatabaseOperations) Close() error {
	return ops.db.Close()
}
