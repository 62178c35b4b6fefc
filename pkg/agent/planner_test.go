package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/llms"
	"github.com/kadirpekel/argus/pkg/snapshot"
	"github.com/kadirpekel/argus/pkg/testutils"
)

func searchPage() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		URL:   "https://shop.example.com/",
		Title: "Shop",
		Elements: []snapshot.Element{
			{Ref: "e1", Role: "link", Name: "Home"},
			{Ref: "e2", Role: "searchbox", Name: "Search products"},
			{Ref: "e3", Role: "button", Name: "Go"},
		},
	}
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
		check   func(t *testing.T, p *Plan)
	}{
		{
			name: "bare object",
			text: `{"action": "click", "args": {"ref": "e3"}, "rationale": "press go", "done": false}`,
			check: func(t *testing.T, p *Plan) {
				assert.Equal(t, "click", p.Action)
				assert.Equal(t, "e3", p.Args["ref"])
				assert.False(t, p.Done)
			},
		},
		{
			name: "fenced json",
			text: "```json\n{\"action\": \"press\", \"args\": {\"key\": \"Enter\"}, \"done\": false}\n```",
			check: func(t *testing.T, p *Plan) {
				assert.Equal(t, "press", p.Action)
				assert.Equal(t, "Enter", p.Args["key"])
			},
		},
		{
			name: "prose around the object",
			text: `Sure, here is the next step: {"action": "scroll", "args": {"direction": "down"}, "done": false} Let me know.`,
			check: func(t *testing.T, p *Plan) {
				assert.Equal(t, "scroll", p.Action)
			},
		},
		{
			name: "done without action",
			text: `{"action": "", "args": {"final_message": "all set"}, "done": true}`,
			check: func(t *testing.T, p *Plan) {
				assert.True(t, p.Done)
				assert.Equal(t, "all set", p.FinalMessage())
			},
		},
		{name: "no json at all", text: "I would click the search box now.", wantErr: true},
		{name: "empty string", text: "", wantErr: true},
		{name: "broken json", text: `{"action": "click", "args": {`, wantErr: true},
		{name: "missing action and not done", text: `{"args": {"ref": "e1"}, "done": false}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePlan(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPlanParse)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestPlan_FinalMessage(t *testing.T) {
	withArg := &Plan{Done: true, Rationale: "wrap up", Args: map[string]interface{}{"final_message": "ordered the book"}}
	assert.Equal(t, "ordered the book", withArg.FinalMessage())

	rationaleOnly := &Plan{Done: true, Rationale: "nothing left to do"}
	assert.Equal(t, "nothing left to do", rationaleOnly.FinalMessage())

	bare := &Plan{Done: true}
	assert.Equal(t, "goal complete", bare.FinalMessage())
}

func TestLLMPlanner_NextPlan(t *testing.T) {
	llm := testutils.NewMockLLMWithPlans(
		`{"action": "type", "args": {"ref": "e2", "text": "espresso"}, "rationale": "search for it", "done": false}`,
	)
	p := NewLLMPlanner(llm, "")

	plan, tokens, err := p.NextPlan(context.Background(), PlanRequest{
		Goal:     "find an espresso machine",
		Step:     1,
		Snapshot: searchPage(),
		Memory:   "## Recent Steps\n1. navigate: opened the shop",
	})
	require.NoError(t, err)

	assert.Equal(t, "type", plan.Action)
	assert.Equal(t, "espresso", plan.Args["text"])
	assert.Equal(t, 10, tokens)

	msgs := llm.LastMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "browser-automation agent")

	assert.Equal(t, llms.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "## Recent Steps")
	assert.Contains(t, msgs[1].Content, `[e2] searchbox "Search products"`)
	assert.Contains(t, msgs[1].Content, "Goal: find an espresso machine")
	assert.Contains(t, msgs[1].Content, "Step 1.")

	// The plan schema rides along for structured-output providers.
	assert.Equal(t, 1, llm.StructuredCalls)
}

func TestLLMPlanner_ParseErrorStillReportsTokens(t *testing.T) {
	llm := testutils.NewMockLLMWithPlans("no plan here")
	p := NewLLMPlanner(llm, "")

	plan, tokens, err := p.NextPlan(context.Background(), PlanRequest{Goal: "g", Step: 1, Snapshot: searchPage()})
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ErrPlanParse)
	assert.Equal(t, 10, tokens)
}

func TestLLMPlanner_CompletionErrorIsNotParseError(t *testing.T) {
	llm := testutils.NewMockLLM()
	llm.CompleteErr = errors.New("connection refused")
	p := NewLLMPlanner(llm, "")

	_, _, err := p.NextPlan(context.Background(), PlanRequest{Goal: "g", Step: 1, Snapshot: searchPage()})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPlanParse)
	assert.ErrorContains(t, err, "llm completion")
}

func TestLLMPlanner_CustomSystemPrompt(t *testing.T) {
	llm := testutils.NewMockLLM()
	p := NewLLMPlanner(llm, "Answer in JSON. Prefer keyboard navigation.")

	_, _, err := p.NextPlan(context.Background(), PlanRequest{Goal: "g", Step: 1, Snapshot: searchPage()})
	require.NoError(t, err)

	msgs := llm.LastMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Answer in JSON. Prefer keyboard navigation.", msgs[0].Content)
}

func TestLLMPlanner_Name(t *testing.T) {
	p := NewLLMPlanner(testutils.NewMockLLM(), "")
	assert.Equal(t, "llm:mock-model", p.Name())
}

func TestFallbackPlanner_Sequence(t *testing.T) {
	p := NewFallbackPlanner()
	req := PlanRequest{Goal: "wireless mouse", Snapshot: searchPage()}

	plan, tokens, err := p.NextPlan(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, tokens)
	assert.Equal(t, "click", plan.Action)
	assert.Equal(t, "e2", plan.Args["ref"])

	plan, _, err = p.NextPlan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "type", plan.Action)
	assert.Equal(t, "e2", plan.Args["ref"])
	assert.Equal(t, "wireless mouse", plan.Args["text"])

	plan, _, err = p.NextPlan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "press", plan.Action)
	assert.Equal(t, "Enter", plan.Args["key"])

	plan, _, err = p.NextPlan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, plan.Done)
	assert.Equal(t, "search submitted", plan.FinalMessage())

	// Terminal stage repeats.
	plan, _, err = p.NextPlan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, plan.Done)
}

func TestFallbackPlanner_RetargetsAfterRefsRenumber(t *testing.T) {
	p := NewFallbackPlanner()

	first := &snapshot.Snapshot{Elements: []snapshot.Element{
		{Ref: "e1", Role: "searchbox", Name: "Search"},
	}}
	plan, _, err := p.NextPlan(context.Background(), PlanRequest{Goal: "tea", Snapshot: first})
	require.NoError(t, err)
	assert.Equal(t, "e1", plan.Args["ref"])

	// The page re-renders and the searchbox moves down the listing.
	second := &snapshot.Snapshot{Elements: []snapshot.Element{
		{Ref: "e1", Role: "link", Name: "Home"},
		{Ref: "e2", Role: "searchbox", Name: "Search"},
	}}
	plan, _, err = p.NextPlan(context.Background(), PlanRequest{Goal: "tea", Snapshot: second})
	require.NoError(t, err)
	assert.Equal(t, "type", plan.Action)
	assert.Equal(t, "e2", plan.Args["ref"])
}

func TestFallbackPlanner_TextboxFallback(t *testing.T) {
	p := NewFallbackPlanner()
	snap := &snapshot.Snapshot{Elements: []snapshot.Element{
		{Ref: "e1", Role: "textbox", Name: "Query"},
	}}

	plan, _, err := p.NextPlan(context.Background(), PlanRequest{Goal: "g", Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, "e1", plan.Args["ref"])
}

func TestFallbackPlanner_NoSearchbox(t *testing.T) {
	p := NewFallbackPlanner()
	snap := &snapshot.Snapshot{Elements: []snapshot.Element{
		{Ref: "e1", Role: "link", Name: "Home"},
	}}

	_, _, err := p.NextPlan(context.Background(), PlanRequest{Goal: "g", Snapshot: snap})
	assert.ErrorContains(t, err, "no searchbox")
}

func TestFallbackPlanner_Name(t *testing.T) {
	assert.Equal(t, "fallback", NewFallbackPlanner().Name())
}
