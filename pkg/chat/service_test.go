package chat

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbot/pkg/discovery"
	"salesbot/pkg/persistence"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*persistence.Conversation
	messages      map[string][]*persistence.StoredMessage
	leads         map[string]*persistence.Lead
	usage         []string
	failUpserts   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*persistence.Conversation),
		messages:      make(map[string][]*persistence.StoredMessage),
		leads:         make(map[string]*persistence.Lead),
	}
}

func (f *fakeStore) UpsertConversation(conv *persistence.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpserts {
		return fmt.Errorf("disk full")
	}
	saved := *conv
	f.conversations[conv.ID] = &saved
	return nil
}

func (f *fakeStore) GetConversation(id string) (*persistence.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, sql.ErrNoRows)
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeStore) AppendMessage(msg *persistence.StoredMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *msg
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], &saved)
	return nil
}

func (f *fakeStore) GetMessages(conversationID string) ([]*persistence.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[conversationID], nil
}

func (f *fakeStore) ListConversations(_ *persistence.ConversationFilter) ([]*persistence.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*persistence.ConversationSummary
	for _, conv := range f.conversations {
		out = append(out, &persistence.ConversationSummary{
			Conversation: *conv,
			MessageCount: len(f.messages[conv.ID]),
		})
	}
	return out, nil
}

func (f *fakeStore) UpsertLead(lead *persistence.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *lead
	f.leads[lead.ConversationID] = &saved
	return nil
}

func (f *fakeStore) RecordUsage(day, model string, promptTokens, completionTokens int64, costUSD float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage = append(f.usage, fmt.Sprintf("%s/%s/%d/%d", day, model, promptTokens, completionTokens))
	return nil
}

// scriptedEngine advances state by a fixed script instead of LLM calls.
type scriptedEngine struct {
	advance func(st *discovery.ConversationState, userText string) []discovery.Message
}

func (e *scriptedEngine) Advance(_ context.Context, st *discovery.ConversationState, userText string) ([]discovery.Message, error) {
	st.AppendHuman(userText)
	replies := e.advance(st, userText)
	for _, r := range replies {
		st.AppendAI(r.Content)
	}
	return replies, nil
}

func askEngine() *scriptedEngine {
	return &scriptedEngine{advance: func(st *discovery.ConversationState, _ string) []discovery.Message {
		_ = st.AdvanceTo(discovery.StageUnderstand)
		return []discovery.Message{{Role: discovery.RoleAI, Content: "What does your business do?"}}
	}}
}

func TestProcessTurnCreatesConversation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, askEngine(), nil, nil)

	resp, err := svc.ProcessTurn(context.Background(), &TurnRequest{Message: "hello", Source: "widget"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "What does your business do?", resp.Response)
	assert.Equal(t, discovery.StageUnderstand, resp.Stage)

	// State and transcript were persisted.
	conv, err := store.GetConversation(resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "widget", conv.Source)
	assert.Equal(t, "understand", conv.Stage)

	msgs, _ := store.GetMessages(resp.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "human", msgs[0].Role)
	assert.Equal(t, "ai", msgs[1].Role)
}

func TestProcessTurnResumesConversation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, askEngine(), nil, nil)

	first, err := svc.ProcessTurn(context.Background(), &TurnRequest{Message: "hi", Source: "widget"})
	require.NoError(t, err)

	second, err := svc.ProcessTurn(context.Background(), &TurnRequest{
		ConversationID: first.ConversationID,
		Message:        "we are a bakery",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	detail, err := svc.GetConversation(first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, detail.State.Messages, 4)
	assert.Len(t, detail.Messages, 4)
}

func TestProcessTurnUnknownIDStartsFresh(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, askEngine(), nil, nil)

	resp, err := svc.ProcessTurn(context.Background(), &TurnRequest{
		ConversationID: "conv-vanished",
		Message:        "hello?",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "conv-vanished", resp.ConversationID)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestProcessTurnRejectsEmptyMessage(t *testing.T) {
	svc := NewService(newFakeStore(), askEngine(), nil, nil)
	_, err := svc.ProcessTurn(context.Background(), &TurnRequest{Message: ""})
	assert.Error(t, err)
}

func TestProcessTurnPersistenceFailureIsHard(t *testing.T) {
	store := newFakeStore()
	store.failUpserts = true
	svc := NewService(store, askEngine(), nil, nil)

	_, err := svc.ProcessTurn(context.Background(), &TurnRequest{Message: "hello"})
	assert.Error(t, err)
}

func TestLeadCapturedOnBooking(t *testing.T) {
	store := newFakeStore()
	bookingEngine := &scriptedEngine{advance: func(st *discovery.ConversationState, _ string) []discovery.Message {
		st.Stage = discovery.StageComplete
		st.CalendlyShown = true
		st.BusinessInfo.BusinessType = "bakery"
		st.BusinessInfo.TeamSize = 4
		st.IdentifiedTask = "invoicing"
		st.PartnershipTier = discovery.TierStarter
		return []discovery.Message{{Role: discovery.RoleAI, Content: "book here"}}
	}}
	svc := NewService(store, bookingEngine, nil, nil)

	resp, err := svc.ProcessTurn(context.Background(), &TurnRequest{Message: "yes", Source: "widget"})
	require.NoError(t, err)
	assert.True(t, resp.CalendlyShown)

	lead, ok := store.leads[resp.ConversationID]
	require.True(t, ok)
	assert.Equal(t, "bakery", lead.BusinessType)
	assert.Equal(t, "starter", lead.PartnershipTier)
	assert.True(t, lead.CalendlyShown)
}

func TestMultiReplyTurnsJoinWithBlankLine(t *testing.T) {
	store := newFakeStore()
	doubleEngine := &scriptedEngine{advance: func(st *discovery.ConversationState, _ string) []discovery.Message {
		_ = st.AdvanceTo(discovery.StageRecommend)
		return []discovery.Message{
			{Role: discovery.RoleAI, Content: "proposal"},
			{Role: discovery.RoleAI, Content: "recommendation"},
		}
	}}
	svc := NewService(store, doubleEngine, nil, nil)

	resp, err := svc.ProcessTurn(context.Background(), &TurnRequest{Message: "details"})
	require.NoError(t, err)
	assert.Equal(t, "proposal\n\nrecommendation", resp.Response)

	msgs, _ := store.GetMessages(resp.ConversationID)
	assert.Len(t, msgs, 3)
}

func TestUsageAccountantRecords(t *testing.T) {
	store := newFakeStore()
	acct := NewUsageAccountant(store, nil, "claude-sonnet-4-20250514")
	acct.Record(100, 50)
	require.Len(t, store.usage, 1)
	assert.Contains(t, store.usage[0], "claude-sonnet-4-20250514/100/50")
}
