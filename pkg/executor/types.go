package executor

import "time"

// Action is one name from the fixed vocabulary the step loop recognizes.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionType       Action = "type"
	ActionPress      Action = "press"
	ActionSelect     Action = "select"
	ActionHover      Action = "hover"
	ActionScroll     Action = "scroll"
	ActionWait       Action = "wait"
	ActionScreenshot Action = "screenshot"
	ActionReadText   Action = "read_text"
	ActionGoBack     Action = "go_back"
	ActionGoForward  Action = "go_forward"

	// ActionDone terminates the run. The step loop consumes it directly;
	// it never reaches the executor.
	ActionDone Action = "done"
)

// Known reports whether name is in the action vocabulary.
func Known(name Action) bool {
	switch name {
	case ActionNavigate, ActionClick, ActionType, ActionPress, ActionSelect,
		ActionHover, ActionScroll, ActionWait, ActionScreenshot,
		ActionReadText, ActionGoBack, ActionGoForward, ActionDone:
		return true
	}
	return false
}

// IsMutating reports whether a successful action may have changed the page.
// The snapshot cache survives only non-mutating actions.
func IsMutating(name Action) bool {
	switch name {
	case ActionWait, ActionScroll, ActionHover, ActionScreenshot, ActionReadText:
		return false
	}
	return true
}

// Classification is the final verdict on an Apply call.
type Classification string

const (
	ClassOK        Classification = "ok"
	ClassTransient Classification = "transient"
	ClassPermanent Classification = "permanent"
	ClassTimeout   Classification = "timeout"
)

// ActionResult is the outcome of one Apply call. Exactly one classification
// is set; Success is true only for ClassOK. Observation is a short message:
// what happened on success, the last error text otherwise.
type ActionResult struct {
	Success        bool           `json:"success"`
	Observation    string         `json:"observation"`
	RetriesUsed    int            `json:"retries_used"`
	Classification Classification `json:"classification"`

	// Text carries the full extraction for read_text; Observation only
	// summarizes it.
	Text string `json:"text,omitempty"`

	// Screenshot carries the raw image for the screenshot action.
	Screenshot []byte `json:"-"`
}

// Metrics is a point-in-time view of executor counters.
type Metrics struct {
	ActionsExecuted  int64                    `json:"actions_executed"`
	ActionFailures   int64                    `json:"action_failures"`
	ActionRetries    int64                    `json:"action_retries"`
	AvgActionTime    time.Duration            `json:"avg_action_time"`
	ByClassification map[Classification]int64 `json:"by_classification"`
}
