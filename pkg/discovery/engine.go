package discovery

import (
	"context"
	"fmt"
	"time"

	"salesbot/pkg/agent/llm"
	"salesbot/pkg/config"
	"salesbot/pkg/logx"
)

// maxUnderstandQuestions caps how many discovery questions the understand
// stage may ask before the flow moves on regardless of what it learned.
const maxUnderstandQuestions = 3

// Engine drives a conversation through the discovery stages. It owns all
// stage semantics; persistence and transport live elsewhere. An Engine is
// safe for concurrent use as long as no two goroutines advance the same
// ConversationState.
type Engine struct {
	client      llm.Client
	business    config.BusinessConfig
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *logx.Logger
}

// NewEngine builds an Engine over a completion client and configuration.
func NewEngine(client llm.Client, cfg *config.Config) *Engine {
	return &Engine{
		client:      client,
		business:    cfg.Business,
		temperature: cfg.LLM.Temperature,
		maxTokens:   cfg.LLM.MaxTokens,
		timeout:     cfg.LLM.Timeout,
		logger:      logx.NewLogger("discovery"),
	}
}

// Advance processes one visitor turn: it appends the visitor message, runs
// the entry actions for the current stage (chaining through transient
// stages), and returns the agent messages produced this turn. The state is
// mutated in place. Completion-service failures degrade to canned replies;
// Advance only errors on internal invariant violations.
func (e *Engine) Advance(ctx context.Context, st *ConversationState, userText string) ([]Message, error) {
	before := len(st.Messages)
	st.AppendHuman(userText)

	if st.Stage.Terminal() {
		st.AppendAI(formatBookingReminder(e.business.CalendlyURL))
		return st.Messages[before+1:], nil
	}

	if err := e.step(ctx, st); err != nil {
		return nil, err
	}
	return st.Messages[before+1:], nil
}

// step dispatches on the current stage and runs until the conversation
// reaches a stage that waits for visitor input.
func (e *Engine) step(ctx context.Context, st *ConversationState) error {
	switch st.Stage {
	case StageStart, StageUnderstand:
		return e.understand(ctx, st)
	case StageIdentify:
		return e.scope(ctx, st)
	case StageScope:
		return e.propose(ctx, st)
	case StageRecommend:
		return e.book(ctx, st)
	default:
		return fmt.Errorf("no handler for stage %s", st.Stage)
	}
}

// understand runs the question loop: extract what we can from the
// transcript, then either ask the next discovery question or move on to
// identify. It asks at most maxUnderstandQuestions questions, and fewer
// when the key attributes are already known.
func (e *Engine) understand(ctx context.Context, st *ConversationState) error {
	if st.Stage == StageStart {
		if err := st.AdvanceTo(StageUnderstand); err != nil {
			return err
		}
	}

	e.extractInfo(ctx, st)

	if st.QuestionsAsked < maxUnderstandQuestions && e.needsMoreDiscovery(st) {
		st.AppendAI(understandQuestions[st.QuestionsAsked])
		st.QuestionsAsked++
		return nil
	}
	return e.identify(ctx, st)
}

// needsMoreDiscovery decides whether another question is worth asking. The
// first two questions are always asked; the third only when the key
// attributes are still missing.
func (e *Engine) needsMoreDiscovery(st *ConversationState) bool {
	if st.QuestionsAsked < 2 {
		return true
	}
	return st.BusinessInfo.BusinessType == "" || st.BusinessInfo.BiggestChallenge == ""
}

// extractInfo runs business-attribute extraction over the transcript and
// merges the result into state. Extraction is best effort: on any failure
// the state keeps whatever it already had.
func (e *Engine) extractInfo(ctx context.Context, st *ConversationState) {
	resp, err := e.complete(ctx, []llm.CompletionMessage{
		llm.NewUserMessage(extractionPrompt(st.Messages)),
	})
	if err != nil {
		e.logger.Warn("extraction call failed for %s: %v", st.ConversationID, err)
		return
	}
	fresh, err := parseBusinessInfo(resp.Content)
	if err != nil {
		e.logger.Debug("extraction parse failed for %s: %v", st.ConversationID, err)
		return
	}
	st.BusinessInfo.Merge(fresh)
}

// identify names the highest-value automation target and asks the visitor
// to confirm it.
func (e *Engine) identify(ctx context.Context, st *ConversationState) error {
	if err := st.AdvanceTo(StageIdentify); err != nil {
		return err
	}

	reply := identifyFallback
	resp, err := e.complete(ctx, e.withTranscript(st, identifyPrompt))
	if err != nil {
		e.logger.Warn("identify call failed for %s: %v", st.ConversationID, err)
	} else {
		reply = resp.Content
	}
	st.AppendAI(reply)
	return nil
}

// scope records the visitor's answer as the identified task and asks the
// scoping questions.
func (e *Engine) scope(_ context.Context, st *ConversationState) error {
	if err := st.AdvanceTo(StageScope); err != nil {
		return err
	}

	task := placeholderTask
	if last, ok := st.LastHumanMessage(); ok && last != "" {
		task = last
	}
	st.IdentifiedTask = task

	st.AppendAI(formatScopeQuestions(task))
	return nil
}

// propose drafts the MVP proposal, then chains straight into recommend.
// Propose never waits for input; a visitor only ever observes the combined
// proposal-plus-recommendation turn.
func (e *Engine) propose(ctx context.Context, st *ConversationState) error {
	if err := st.AdvanceTo(StagePropose); err != nil {
		return err
	}

	proposal := fallbackProposal()
	resp, err := e.complete(ctx, []llm.CompletionMessage{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(proposalPrompt(st.BusinessInfo, st.IdentifiedTask, st.Messages)),
	})
	if err != nil {
		e.logger.Warn("proposal call failed for %s: %v", st.ConversationID, err)
	} else if parsed, perr := parseProposal(resp.Content); perr != nil {
		e.logger.Debug("proposal parse failed for %s: %v", st.ConversationID, perr)
	} else {
		proposal = parsed
	}
	st.MVPProposal = &proposal
	st.AppendAI(formatProposal(&proposal))

	return e.recommend(st)
}

// recommend computes the partnership tier and pitches it.
func (e *Engine) recommend(st *ConversationState) error {
	if err := st.AdvanceTo(StageRecommend); err != nil {
		return err
	}

	tier := DetermineTier(st.BusinessInfo, st.MVPProposal)
	st.PartnershipTier = tier
	st.AppendAI(formatRecommendation(tier, e.tierPrice(tier), st.MVPProposal.AgentName))
	return nil
}

// book shows the Calendly link and completes the conversation.
func (e *Engine) book(_ context.Context, st *ConversationState) error {
	if err := st.AdvanceTo(StageBook); err != nil {
		return err
	}

	st.AppendAI(formatBooking(e.business.CalendlyURL))
	st.CalendlyShown = true
	return st.AdvanceTo(StageComplete)
}

func (e *Engine) tierPrice(tier Tier) int {
	switch tier {
	case TierEnterprise:
		return e.business.EnterprisePriceUSD
	case TierGrowth:
		return e.business.GrowthPriceUSD
	default:
		return e.business.StarterPriceUSD
	}
}

// withTranscript builds a request carrying the persona, the transcript so
// far, and a final instruction.
func (e *Engine) withTranscript(st *ConversationState, instruction string) []llm.CompletionMessage {
	msgs := make([]llm.CompletionMessage, 0, len(st.Messages)+2)
	msgs = append(msgs, llm.NewSystemMessage(systemPrompt))
	for _, m := range st.Messages {
		if m.Role == RoleHuman {
			msgs = append(msgs, llm.NewUserMessage(m.Content))
		} else {
			msgs = append(msgs, llm.NewAssistantMessage(m.Content))
		}
	}
	msgs = append(msgs, llm.NewUserMessage(instruction))
	return msgs
}

// complete issues one completion call with the engine's generation settings
// and timeout. Retries happen below this layer, in middleware.
func (e *Engine) complete(ctx context.Context, messages []llm.CompletionMessage) (llm.CompletionResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.client.Complete(cctx, llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
}
