package memory

import (
	"context"
	"time"
)

// Tier names for the three persistent tiers.
const (
	TierEpisodic = "episodic"
	TierSemantic = "semantic"
	TierSkill    = "skill"
)

// StepRecord is one executed step of the current run.
type StepRecord struct {
	StepNumber  int                    `json:"step_number"`
	Action      string                 `json:"action"`
	Args        map[string]interface{} `json:"args,omitempty"`
	Observation string                 `json:"observation"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration"`
	Timestamp   time.Time              `json:"timestamp"`

	// Screenshot holds raw image bytes when the step captured one. Older
	// payloads are stripped in place by the retention policy; the record
	// itself stays.
	Screenshot []byte `json:"-"`
}

// Episode is the outcome summary of one completed run. Exactly one episode
// is written per run, at termination.
type Episode struct {
	ID         string        `json:"id"`
	TaskPrompt string        `json:"task_prompt"`
	Outcome    string        `json:"outcome"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration"`
	ToolsUsed  []string      `json:"tools_used,omitempty"`
	StepCount  int           `json:"step_count"`
	Tags       []string      `json:"tags,omitempty"`
	Importance float64       `json:"importance,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SemanticEntry is a distilled pattern or fact. The loop only reads these;
// they arrive via knowledge seeding or offline consolidation.
type SemanticEntry struct {
	ID            string    `json:"id"`
	Pattern       string    `json:"pattern"`
	EvidenceCount int       `json:"evidence_count"`
	Confidence    float64   `json:"confidence"`
	Timestamp     time.Time `json:"timestamp"`
}

// Skill is a named reusable action sequence. Names are unique; adding a
// skill under an existing name replaces it.
type Skill struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ActionSequence []string  `json:"action_sequence"`
	SuccessRate    float64   `json:"success_rate"`
	ExecutionCount int       `json:"execution_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// SearchResult is one scored snippet from a persistent tier.
type SearchResult struct {
	Tier    string  `json:"tier"`
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Stats is a point-in-time view of memory state.
type Stats struct {
	WorkingEntries  int   `json:"working_entries"`
	FullRecords     int   `json:"full_records"`
	Summaries       int   `json:"summaries"`
	Episodes        int   `json:"episodes"`
	SemanticEntries int   `json:"semantic_entries"`
	Skills          int   `json:"skills"`
	Compactions     int64 `json:"compactions"`
	BudgetExceeded  int64 `json:"budget_exceeded"`
}

// EpisodeStore persists episodes across runs. Implementations live in
// pkg/store. Writes are fire-and-forget from the manager's point of view;
// in-memory state stays authoritative when a write fails.
type EpisodeStore interface {
	AppendEpisode(ctx context.Context, ep Episode) error
	ListEpisodes(ctx context.Context, limit int) ([]Episode, error)
}

// SkillStore persists skills across runs.
type SkillStore interface {
	PutSkill(ctx context.Context, s Skill) error
	ListSkills(ctx context.Context) ([]Skill, error)
}

// RecallHit is one match returned by embedding-backed recall.
type RecallHit struct {
	ID    string
	Score float64
}

// Recaller is the embedding-backed recall surface. Defined here so vector
// integrations can implement it without a circular dependency on the
// manager's callers.
type Recaller interface {
	Index(ctx context.Context, id, text string, metadata map[string]interface{}) error
	Recall(ctx context.Context, query string, limit int) ([]RecallHit, error)
}
