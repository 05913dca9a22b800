package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbot/pkg/agent/llm"
	"salesbot/pkg/config"
)

func newTestEngine(client llm.Client) *Engine {
	return NewEngine(client, config.Default())
}

func TestEngineFullFlow(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: `{"business_type":"logistics company","team_size":60,"biggest_challenge":"manual dispatch","time_wasters":["dispatch"],"current_tools":["Excel"]}`},
		{Content: `{"business_type":"logistics company","team_size":60,"biggest_challenge":"manual dispatch","time_wasters":["dispatch","invoicing"],"current_tools":["Excel"]}`},
		{Content: `{"business_type":"logistics company","team_size":60,"biggest_challenge":"manual dispatch","time_wasters":["dispatch","invoicing","scheduling"],"current_tools":["Excel","Slack"]}`},
		{Content: "Sounds like dispatch planning is your biggest drain. Would automating it save you the most time?"},
		{Content: "```json\n{\"agent_name\":\"Dispatch Autopilot\",\"description\":\"Plans daily routes automatically.\",\"time_saved\":\"15 hours/week\",\"integrations\":[\"Excel\",\"Slack\"],\"success_metric\":\"Zero manual dispatch hours\",\"delivery_time\":\"3 weeks\"}\n```"},
	}, nil)
	engine := newTestEngine(mock)
	st := NewConversationState("conv-1", SourceWidget)

	ctx := context.Background()

	// Turn 1: first discovery question.
	replies, err := engine.Advance(ctx, st, "Hi, I run a logistics company.")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, understandQuestions[0], replies[0].Content)
	assert.Equal(t, StageUnderstand, st.Stage)
	assert.Equal(t, 1, st.QuestionsAsked)

	// Turn 2: second discovery question.
	replies, err = engine.Advance(ctx, st, "60 people, dispatch eats our mornings.")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, understandQuestions[1], replies[0].Content)
	assert.Equal(t, StageUnderstand, st.Stage)

	// Turn 3: key attributes known, so the flow moves to identify.
	replies, err = engine.Advance(ctx, st, "Planning routes by hand in Excel.")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, StageIdentify, st.Stage)
	assert.Contains(t, replies[0].Content, "dispatch planning")
	assert.Equal(t, 60, st.BusinessInfo.TeamSize)

	// Turn 4: the answer becomes the identified task and scoping begins.
	replies, err = engine.Advance(ctx, st, "Yes, route planning for sure.")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, StageScope, st.Stage)
	assert.Equal(t, "Yes, route planning for sure.", st.IdentifiedTask)
	assert.Contains(t, replies[0].Content, "route planning")

	// Turn 5: proposal plus recommendation in one turn.
	replies, err = engine.Advance(ctx, st, "Inputs are orders, outputs are routes. Excel and Slack.")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, StageRecommend, st.Stage)
	require.NotNil(t, st.MVPProposal)
	assert.Equal(t, "Dispatch Autopilot", st.MVPProposal.AgentName)
	assert.Contains(t, replies[0].Content, "Dispatch Autopilot")
	assert.Equal(t, TierEnterprise, st.PartnershipTier)
	assert.Contains(t, replies[1].Content, "Enterprise Partnership")
	assert.Contains(t, replies[1].Content, "$5000/month")

	// Turn 6: booking link, conversation complete.
	replies, err = engine.Advance(ctx, st, "Yes, show me.")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, StageComplete, st.Stage)
	assert.True(t, st.CalendlyShown)
	assert.Contains(t, replies[0].Content, config.DefaultCalendlyURL)

	assert.Equal(t, 5, mock.CallCount())
}

func TestEngineAsksAtMostThreeQuestions(t *testing.T) {
	// Extraction never learns anything, so the engine asks all three
	// questions before moving on.
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "not json"},
		{Content: "not json"},
		{Content: "not json"},
		{Content: "not json"},
		{Content: "Which task should we automate first?"},
	}, nil)
	engine := newTestEngine(mock)
	st := NewConversationState("conv-2", SourceAPI)
	ctx := context.Background()

	for turn, want := range understandQuestions {
		replies, err := engine.Advance(ctx, st, "hmm")
		require.NoError(t, err, "turn %d", turn+1)
		require.Len(t, replies, 1)
		assert.Equal(t, want, replies[0].Content)
	}
	assert.Equal(t, 3, st.QuestionsAsked)
	assert.Equal(t, StageUnderstand, st.Stage)

	// Fourth turn must leave understand no matter what.
	_, err := engine.Advance(ctx, st, "still not sure")
	require.NoError(t, err)
	assert.Equal(t, StageIdentify, st.Stage)
	assert.Equal(t, 3, st.QuestionsAsked)
}

func TestEngineDegradedCompletionService(t *testing.T) {
	// Every completion call fails. The conversation still reaches
	// complete on canned replies and the fallback proposal.
	failAll := make([]error, 16)
	for i := range failAll {
		failAll[i] = errors.New("service unavailable")
	}
	mock := llm.NewMockClient(nil, failAll)
	engine := newTestEngine(mock)
	st := NewConversationState("conv-3", SourceEmail)
	ctx := context.Background()

	inputs := []string{"hi", "a bakery", "orders", "invoices", "paper forms", "tell me more", "sure"}
	for _, in := range inputs {
		_, err := engine.Advance(ctx, st, in)
		require.NoError(t, err)
	}

	assert.Equal(t, StageComplete, st.Stage)
	assert.True(t, st.CalendlyShown)
	require.NotNil(t, st.MVPProposal)
	assert.Equal(t, fallbackProposal().AgentName, st.MVPProposal.AgentName)
	assert.Equal(t, TierStarter, st.PartnershipTier)
}

func TestEngineCompleteStageIsIdempotent(t *testing.T) {
	mock := llm.NewMockClient(nil, nil)
	engine := newTestEngine(mock)
	st := NewConversationState("conv-4", SourceWidget)
	st.Stage = StageComplete
	st.CalendlyShown = true

	replies, err := engine.Advance(context.Background(), st, "hello again")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Content, config.DefaultCalendlyURL)
	assert.Equal(t, StageComplete, st.Stage)
	assert.Zero(t, mock.CallCount())

	// State only accrues transcript, nothing else changes.
	replies, err = engine.Advance(context.Background(), st, "one more")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, st.CalendlyShown)
}

func TestEngineStagesNeverRegress(t *testing.T) {
	mock := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "not json"}, {Content: "not json"}, {Content: "not json"},
		{Content: "not json"}, {Content: "which task?"}, {Content: "not json"},
	}, nil)
	engine := newTestEngine(mock)
	st := NewConversationState("conv-5", SourceWidget)
	ctx := context.Background()

	lastOrdinal := st.Stage.Ordinal()
	for _, in := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := engine.Advance(ctx, st, in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, st.Stage.Ordinal(), lastOrdinal)
		lastOrdinal = st.Stage.Ordinal()
	}
	assert.Equal(t, StageComplete, st.Stage)
}
