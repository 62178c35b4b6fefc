package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/argus/pkg/executor"
	"github.com/kadirpekel/argus/pkg/llms"
	"github.com/kadirpekel/argus/pkg/snapshot"
)

// Plan is the planner's verdict for one step: the next action, or
// done=true to finish the run.
type Plan struct {
	Action    string                 `json:"action" jsonschema:"required,description=Action name from the fixed vocabulary"`
	Args      map[string]interface{} `json:"args,omitempty" jsonschema:"description=Arguments for the action"`
	Rationale string                 `json:"rationale,omitempty" jsonschema:"description=One short sentence explaining the choice"`
	Done      bool                   `json:"done" jsonschema:"description=True when the goal is complete or cannot be completed"`
}

var planSchema = llms.MustSchemaFor[Plan]()

// FinalMessage returns the user-facing outcome of a terminating plan.
func (p *Plan) FinalMessage() string {
	if msg, ok := p.Args["final_message"].(string); ok && msg != "" {
		return msg
	}
	if p.Rationale != "" {
		return p.Rationale
	}
	return "goal complete"
}

// ParsePlan extracts the plan object from a completion. Providers are asked
// for bare JSON but replies still arrive fenced or with prose around the
// object, so parsing spans the first opening brace to the last closing one.
func ParsePlan(text string) (*Plan, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrPlanParse)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	if plan.Action == "" && !plan.Done {
		return nil, fmt.Errorf("%w: missing action", ErrPlanParse)
	}
	return &plan, nil
}

// PlanRequest is everything a planner sees for one step.
type PlanRequest struct {
	Goal string
	Step int

	// Snapshot is the current page capture.
	Snapshot *snapshot.Snapshot

	// Memory is the enriched context string from the memory manager.
	Memory string
}

// Planner produces the next plan for a step. tokens reports LLM usage and
// is zero for non-LLM planners.
type Planner interface {
	NextPlan(ctx context.Context, req PlanRequest) (plan *Plan, tokens int, err error)
	Name() string
}

const defaultSystemPrompt = `You are a browser-automation agent. You control a web page through a
fixed set of actions, and you see the page as a numbered list of
interactive elements.

On every turn respond with a single JSON object and nothing else:

{"action": "<name>", "args": {...}, "rationale": "<one short sentence>", "done": false}

Actions:
- navigate {"url": "https://..."}
- click {"ref": "e3"}
- type {"ref": "e3", "text": "...", "clear": true}
- press {"key": "Enter"}
- select {"ref": "e3", "value": "..."}
- hover {"ref": "e3"}
- scroll {"direction": "down", "amount": 3}
- wait {"seconds": 1}
- screenshot {}
- read_text {"ref": "e3"} (omit ref to read the whole page)
- go_back {}
- go_forward {}
- done {"final_message": "..."} with "done": true

Rules:
- Use only refs that appear in the current page listing.
- Refs change after every page change; never reuse refs from earlier steps.
- When the goal is complete, or cannot be completed, set "done": true and
  summarize the outcome in final_message.`

// LLMPlanner plans through a completion client. The plan schema rides along
// for providers with structured output; the parse path is the same either
// way.
type LLMPlanner struct {
	client       llms.LLMClient
	systemPrompt string
	structured   *llms.StructuredOutput
}

// NewLLMPlanner creates the default planner. An empty systemPrompt selects
// the built-in one.
func NewLLMPlanner(client llms.LLMClient, systemPrompt string) *LLMPlanner {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &LLMPlanner{
		client:       client,
		systemPrompt: systemPrompt,
		structured:   &llms.StructuredOutput{Schema: planSchema},
	}
}

func (p *LLMPlanner) NextPlan(ctx context.Context, req PlanRequest) (*Plan, int, error) {
	messages := []llms.Message{
		llms.SystemMessage(p.systemPrompt),
		llms.UserMessage(renderPlanPrompt(req)),
	}

	text, tokens, err := p.client.Complete(ctx, messages, p.structured)
	if err != nil {
		return nil, 0, fmt.Errorf("llm completion: %w", err)
	}

	plan, err := ParsePlan(text)
	if err != nil {
		return nil, tokens, err
	}
	return plan, tokens, nil
}

func (p *LLMPlanner) Name() string {
	return "llm:" + p.client.ModelName()
}

func renderPlanPrompt(req PlanRequest) string {
	var b strings.Builder
	if req.Memory != "" {
		b.WriteString(req.Memory)
		b.WriteByte('\n')
	}
	b.WriteString("Current page:\n")
	if req.Snapshot != nil {
		b.WriteString(req.Snapshot.Render())
	}
	fmt.Fprintf(&b, "\nGoal: %s\n", req.Goal)
	fmt.Fprintf(&b, "Step %d. Respond with the next action as a single JSON object.\n", req.Step)
	return b.String()
}

// FallbackPlanner is the deterministic no-LLM planner: click the first
// searchbox, type the goal into it, press Enter, report done. It exists as
// an escape hatch for tests and smoke runs.
type FallbackPlanner struct {
	stage int
}

func NewFallbackPlanner() *FallbackPlanner {
	return &FallbackPlanner{}
}

func (p *FallbackPlanner) NextPlan(_ context.Context, req PlanRequest) (*Plan, int, error) {
	switch p.stage {
	case 0, 1:
		// Refs renumber after every fresh snapshot, so the target is
		// re-resolved on each step.
		target, ok := searchTarget(req.Snapshot)
		if !ok {
			return nil, 0, fmt.Errorf("no searchbox on page")
		}
		if p.stage == 0 {
			p.stage = 1
			return &Plan{
				Action:    string(executor.ActionClick),
				Args:      map[string]interface{}{"ref": target},
				Rationale: "focus the search box",
			}, 0, nil
		}
		p.stage = 2
		return &Plan{
			Action:    string(executor.ActionType),
			Args:      map[string]interface{}{"ref": target, "text": req.Goal},
			Rationale: "enter the goal as a search query",
		}, 0, nil
	case 2:
		p.stage = 3
		return &Plan{
			Action:    string(executor.ActionPress),
			Args:      map[string]interface{}{"key": "Enter"},
			Rationale: "submit the search",
		}, 0, nil
	default:
		return &Plan{
			Action:    string(executor.ActionDone),
			Args:      map[string]interface{}{"final_message": "search submitted"},
			Rationale: "search submitted",
			Done:      true,
		}, 0, nil
	}
}

func (p *FallbackPlanner) Name() string {
	return "fallback"
}

// searchTarget returns the ref of the first searchbox, falling back to the
// first textbox.
func searchTarget(snap *snapshot.Snapshot) (string, bool) {
	if snap == nil {
		return "", false
	}
	if boxes := snap.ByRole("searchbox"); len(boxes) > 0 {
		return boxes[0].Ref, true
	}
	if boxes := snap.ByRole("textbox"); len(boxes) > 0 {
		return boxes[0].Ref, true
	}
	return "", false
}
