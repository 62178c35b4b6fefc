package agent

import (
	"errors"
	"time"

	"github.com/kadirpekel/argus/pkg/executor"
	"github.com/kadirpekel/argus/pkg/memory"
	"github.com/kadirpekel/argus/pkg/snapshot"
)

var (
	// ErrGoalEmpty means Run was called with an empty goal.
	ErrGoalEmpty = errors.New("goal is empty")

	// ErrGoalTooLong means the goal exceeds the configured maximum.
	ErrGoalTooLong = errors.New("goal exceeds maximum length")

	// ErrRunActive means Run was called while another run is in flight.
	// Each agent processes one goal at a time.
	ErrRunActive = errors.New("a run is already active")

	// ErrPlanParse means the planner response was not a valid plan object.
	// The loop absorbs up to three of these consecutively before fatal exit.
	ErrPlanParse = errors.New("llm_parse_error")
)

// Reason is the terminal cause of a run.
type Reason string

const (
	ReasonDone       Reason = "done"
	ReasonStepBudget Reason = "step_budget"
	ReasonFatalError Reason = "fatal_error"
	ReasonCancelled  Reason = "cancelled"
)

// Result is the terminal outcome of one Run. Exactly one is produced per
// run; callers inspect Success and Reason rather than errors.
type Result struct {
	RunID            string        `json:"run_id"`
	Goal             string        `json:"goal"`
	Success          bool          `json:"success"`
	Steps            int           `json:"steps"`
	Duration         time.Duration `json:"duration"`
	FinalObservation string        `json:"final_observation"`
	Reason           Reason        `json:"reason"`
	Metrics          RunMetrics    `json:"metrics"`
}

// RunMetrics aggregates the counters of a single run.
type RunMetrics struct {
	LLMCalls       int `json:"llm_calls"`
	TokensUsed     int `json:"tokens_used"`
	ParseErrors    int `json:"parse_errors"`
	ActionFailures int `json:"action_failures"`
	Replans        int `json:"replans"`
}

// Metrics is the agent's cumulative view across runs, with the component
// counters attached.
type Metrics struct {
	Runs        int64 `json:"runs"`
	Steps       int64 `json:"steps"`
	LLMCalls    int64 `json:"llm_calls"`
	TokensUsed  int64 `json:"tokens_used"`
	ParseErrors int64 `json:"parse_errors"`

	Snapshot snapshot.Metrics `json:"snapshot"`
	Executor executor.Metrics `json:"executor"`
	Memory   memory.Stats     `json:"memory"`
}
