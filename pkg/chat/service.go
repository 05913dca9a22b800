// Package chat coordinates one visitor turn end to end: load state, run
// the discovery engine, persist the results, and record funnel metrics.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"salesbot/pkg/discovery"
	"salesbot/pkg/limiter"
	"salesbot/pkg/logx"
	"salesbot/pkg/metrics"
	"salesbot/pkg/persistence"
)

// Store is the persistence surface the service needs.
type Store interface {
	UpsertConversation(conv *persistence.Conversation) error
	GetConversation(id string) (*persistence.Conversation, error)
	AppendMessage(msg *persistence.StoredMessage) error
	GetMessages(conversationID string) ([]*persistence.StoredMessage, error)
	ListConversations(filter *persistence.ConversationFilter) ([]*persistence.ConversationSummary, error)
	UpsertLead(lead *persistence.Lead) error
	RecordUsage(day, model string, promptTokens, completionTokens int64, costUSD float64) error
}

// Engine is the conversation logic surface the service needs.
type Engine interface {
	Advance(ctx context.Context, st *discovery.ConversationState, userText string) ([]discovery.Message, error)
}

// TurnRequest is one inbound visitor message.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Source         string `json:"source,omitempty"`
}

// TurnResponse is the agent's reply to one turn.
type TurnResponse struct {
	ConversationID string          `json:"conversation_id"`
	Response       string          `json:"response"`
	Stage          discovery.Stage `json:"stage"`
	CalendlyShown  bool            `json:"calendly_shown"`
}

// ConversationDetail is the full view of a stored conversation.
type ConversationDetail struct {
	State    *discovery.ConversationState `json:"state"`
	Messages []*persistence.StoredMessage `json:"messages"`
}

// Service processes visitor turns. Safe for concurrent use; per-turn state
// is loaded fresh from the store.
type Service struct {
	store   Store
	engine  Engine
	funnel  *metrics.FunnelRecorder
	limiter *limiter.DailyLimiter
	logger  *logx.Logger
}

// NewService wires a chat service.
func NewService(store Store, engine Engine, funnel *metrics.FunnelRecorder, lim *limiter.DailyLimiter) *Service {
	return &Service{
		store:   store,
		engine:  engine,
		funnel:  funnel,
		limiter: lim,
		logger:  logx.NewLogger("chat"),
	}
}

// ProcessTurn handles one visitor message. Unknown or empty conversation
// IDs start a fresh conversation. Engine degradation never fails a turn;
// persistence failures do.
func (s *Service) ProcessTurn(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	start := time.Now()
	defer func() {
		if s.funnel != nil {
			s.funnel.ObserveTurn(time.Since(start))
		}
	}()

	if s.limiter != nil && s.limiter.Exceeded() {
		if s.funnel != nil {
			s.funnel.DailyLimitThrottled()
		}
	}

	st, isNew, err := s.loadState(req)
	if err != nil {
		return nil, err
	}

	beforeOrdinal := st.Stage.Ordinal()
	wasBooked := st.CalendlyShown

	replies, err := s.engine.Advance(ctx, st, req.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to advance conversation %s: %w", st.ConversationID, err)
	}

	if err := s.persistTurn(st, req.Message, replies); err != nil {
		return nil, err
	}

	s.recordFunnel(st, isNew, beforeOrdinal, wasBooked)

	return &TurnResponse{
		ConversationID: st.ConversationID,
		Response:       joinReplies(replies),
		Stage:          st.Stage,
		CalendlyShown:  st.CalendlyShown,
	}, nil
}

// GetConversation returns the stored state and transcript for an ID.
func (s *Service) GetConversation(id string) (*ConversationDetail, error) {
	conv, err := s.store.GetConversation(id)
	if err != nil {
		return nil, err
	}

	var st discovery.ConversationState
	if err := json.Unmarshal([]byte(conv.StateJSON), &st); err != nil {
		return nil, fmt.Errorf("corrupt state for conversation %s: %w", id, err)
	}

	msgs, err := s.store.GetMessages(id)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{State: &st, Messages: msgs}, nil
}

// ListConversations passes through to the store.
func (s *Service) ListConversations(filter *persistence.ConversationFilter) ([]*persistence.ConversationSummary, error) {
	return s.store.ListConversations(filter)
}

// IsNotFound reports whether an error means the conversation does not
// exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// loadState fetches existing state or creates a fresh conversation. A
// request naming an unknown ID gets a new conversation under a new ID
// rather than an error.
func (s *Service) loadState(req *TurnRequest) (*discovery.ConversationState, bool, error) {
	source := discovery.ParseSource(req.Source)

	if req.ConversationID != "" {
		conv, err := s.store.GetConversation(req.ConversationID)
		switch {
		case err == nil:
			var st discovery.ConversationState
			if uerr := json.Unmarshal([]byte(conv.StateJSON), &st); uerr != nil {
				return nil, false, fmt.Errorf("corrupt state for conversation %s: %w", req.ConversationID, uerr)
			}
			return &st, false, nil
		case IsNotFound(err):
			s.logger.Info("unknown conversation %s, starting fresh", req.ConversationID)
		default:
			return nil, false, err
		}
	}

	st := discovery.NewConversationState(persistence.GenerateConversationID(), source)
	return st, true, nil
}

// persistTurn writes the visitor message, the agent replies, and the
// updated state blob.
func (s *Service) persistTurn(st *discovery.ConversationState, userText string, replies []discovery.Message) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state for %s: %w", st.ConversationID, err)
	}

	if err := s.store.UpsertConversation(&persistence.Conversation{
		ID:        st.ConversationID,
		Source:    string(st.Source),
		Stage:     string(st.Stage),
		StateJSON: string(stateJSON),
	}); err != nil {
		return err
	}

	if err := s.store.AppendMessage(&persistence.StoredMessage{
		ConversationID: st.ConversationID,
		Role:           string(discovery.RoleHuman),
		Content:        userText,
	}); err != nil {
		return err
	}
	for _, reply := range replies {
		if err := s.store.AppendMessage(&persistence.StoredMessage{
			ConversationID: st.ConversationID,
			Role:           string(reply.Role),
			Content:        reply.Content,
		}); err != nil {
			return err
		}
	}
	return nil
}

// recordFunnel emits funnel metrics and captures the lead when the
// booking link first appears. Completion is counted when the stage first
// crosses the proposal.
func (s *Service) recordFunnel(st *discovery.ConversationState, isNew bool, beforeOrdinal int, wasBooked bool) {
	source := string(st.Source)

	if s.funnel != nil {
		if isNew {
			s.funnel.ConversationStarted(source)
		}
		if beforeOrdinal < discovery.StagePropose.Ordinal() && st.Stage.Ordinal() >= discovery.StagePropose.Ordinal() {
			s.funnel.ConversationCompleted(source)
		}
		if !wasBooked && st.CalendlyShown {
			s.funnel.DemoBooked(source, string(st.PartnershipTier))
		}
	}

	if !wasBooked && st.CalendlyShown {
		if err := s.store.UpsertLead(&persistence.Lead{
			ConversationID:  st.ConversationID,
			BusinessType:    st.BusinessInfo.BusinessType,
			TeamSize:        st.BusinessInfo.TeamSize,
			IdentifiedTask:  st.IdentifiedTask,
			PartnershipTier: string(st.PartnershipTier),
			CalendlyShown:   true,
		}); err != nil {
			s.logger.Warn("failed to capture lead for %s: %v", st.ConversationID, err)
		}
	}
}

func joinReplies(replies []discovery.Message) string {
	parts := make([]string, 0, len(replies))
	for _, r := range replies {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}
