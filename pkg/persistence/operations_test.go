package persistence

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a new database for each test.
func createTestDB(t *testing.T) *DatabaseOperations {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := InitializeDatabase(dbPath)
	require.NoError(t, err)

	ops := NewDatabaseOperations(db)
	t.Cleanup(func() { _ = ops.Close() })
	return ops
}

func TestConversationRoundTrip(t *testing.T) {
	ops := createTestDB(t)

	id := GenerateConversationID()
	conv := &Conversation{
		ID:        id,
		Source:    "widget",
		Stage:     "start",
		StateJSON: `{"conversation_id":"` + id + `"}`,
	}
	require.NoError(t, ops.UpsertConversation(conv))

	got, err := ops.GetConversation(id)
	require.NoError(t, err)
	assert.Equal(t, "widget", got.Source)
	assert.Equal(t, "start", got.Stage)
	assert.Equal(t, conv.StateJSON, got.StateJSON)

	// Upsert updates stage and state in place.
	conv.Stage = "understand"
	conv.StateJSON = `{"stage":"understand"}`
	require.NoError(t, ops.UpsertConversation(conv))

	got, err = ops.GetConversation(id)
	require.NoError(t, err)
	assert.Equal(t, "understand", got.Stage)
	assert.Equal(t, `{"stage":"understand"}`, got.StateJSON)
}

func TestGetConversationMissing(t *testing.T) {
	ops := createTestDB(t)
	_, err := ops.GetConversation("conv-does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestMessagesOrderedByTime(t *testing.T) {
	ops := createTestDB(t)

	id := GenerateConversationID()
	require.NoError(t, ops.UpsertConversation(&Conversation{ID: id, Source: "api", Stage: "start", StateJSON: "{}"}))

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, ops.AppendMessage(&StoredMessage{
			ConversationID: id,
			Role:           "human",
			Content:        content,
		}))
	}

	msgs, err := ops.GetMessages(id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
	assert.NotEmpty(t, msgs[0].ID)
}

func TestListConversations(t *testing.T) {
	ops := createTestDB(t)

	widgetID := GenerateConversationID()
	apiID := GenerateConversationID()
	require.NoError(t, ops.UpsertConversation(&Conversation{ID: widgetID, Source: "widget", Stage: "scope", StateJSON: "{}"}))
	require.NoError(t, ops.UpsertConversation(&Conversation{ID: apiID, Source: "api", Stage: "start", StateJSON: "{}"}))
	require.NoError(t, ops.AppendMessage(&StoredMessage{ConversationID: widgetID, Role: "human", Content: "hi"}))
	require.NoError(t, ops.AppendMessage(&StoredMessage{ConversationID: widgetID, Role: "ai", Content: "hello"}))

	all, err := ops.ListConversations(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	widgets, err := ops.ListConversations(&ConversationFilter{Source: "widget"})
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, widgetID, widgets[0].ID)
	assert.Equal(t, 2, widgets[0].MessageCount)

	limited, err := ops.ListConversations(&ConversationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLeadUpsert(t *testing.T) {
	ops := createTestDB(t)

	id := GenerateConversationID()
	require.NoError(t, ops.UpsertConversation(&Conversation{ID: id, Source: "widget", Stage: "complete", StateJSON: "{}"}))

	lead := &Lead{
		ConversationID:  id,
		BusinessType:    "bakery",
		TeamSize:        4,
		IdentifiedTask:  "invoicing",
		PartnershipTier: "starter",
		CalendlyShown:   true,
	}
	require.NoError(t, ops.UpsertLead(lead))

	// Second upsert with changed tier replaces, not duplicates.
	lead.PartnershipTier = "growth"
	require.NoError(t, ops.UpsertLead(lead))

	leads, err := ops.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "growth", leads[0].PartnershipTier)
	assert.True(t, leads[0].CalendlyShown)
}

func TestStaleConversations(t *testing.T) {
	ops := createTestDB(t)

	staleID := GenerateConversationID()
	doneID := GenerateConversationID()
	require.NoError(t, ops.UpsertConversation(&Conversation{ID: staleID, Source: "api", Stage: "scope", StateJSON: "{}"}))
	require.NoError(t, ops.UpsertConversation(&Conversation{ID: doneID, Source: "api", Stage: "complete", StateJSON: "{}"}))

	// Nothing is stale against a zero cutoff in the future direction.
	stale, err := ops.StaleConversations(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// With a negative horizon everything incomplete qualifies.
	stale, err = ops.StaleConversations(-time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, staleID, stale[0].ID)
}

func TestUsageAccumulates(t *testing.T) {
	ops := createTestDB(t)

	day := "2025-06-01"
	require.NoError(t, ops.RecordUsage(day, "claude-sonnet-4-20250514", 100, 50, 0.01))
	require.NoError(t, ops.RecordUsage(day, "claude-sonnet-4-20250514", 200, 100, 0.02))
	require.NoError(t, ops.RecordUsage(day, "gpt-4o", 10, 5, 0.001))
	require.NoError(t, ops.RecordUsage("2025-06-02", "gpt-4o", 999, 999, 9.99))

	rec, err := ops.UsageForDay(day)
	require.NoError(t, err)
	assert.Equal(t, int64(310), rec.PromptTokens)
	assert.Equal(t, int64(155), rec.CompletionTokens)
	assert.InDelta(t, 0.031, rec.CostUSD, 1e-9)

	empty, err := ops.UsageForDay("1999-01-01")
	require.NoError(t, err)
	assert.Zero(t, empty.PromptTokens)
}
