// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memory maintains the agent's four memory tiers: a working buffer
// of step records for the current run, and the episodic, semantic, and
// skill tiers that survive across runs. It serves LLM-ready context strings
// under a token budget and compacts older working entries into one-line
// summaries.
//
// All methods are called from the single-threaded step loop, so the manager
// holds no locks. Persistence and recall indexing are fire-and-forget;
// in-memory state is authoritative when a store write fails.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/observability"
	"github.com/kadirpekel/argus/pkg/utils"
)

// persistTimeout bounds each fire-and-forget store or index write.
const persistTimeout = 5 * time.Second

// workingEntry is one slot of the working buffer: a full record until
// compaction turns it into a summary line.
type workingEntry struct {
	record  *StepRecord
	summary string
}

// Manager owns the four memory tiers.
type Manager struct {
	cfg       config.MemoryConfig
	estimator utils.Estimator

	working  []workingEntry
	episodes []Episode
	semantic []SemanticEntry
	skills   map[string]Skill

	episodeStore EpisodeStore
	skillStore   SkillStore
	recall       Recaller

	nextStep       int
	compactions    int64
	budgetExceeded int64
}

// Option configures optional manager collaborators.
type Option func(*Manager)

// WithEstimator overrides the token estimator built from config.
func WithEstimator(est utils.Estimator) Option {
	return func(m *Manager) { m.estimator = est }
}

// WithEpisodeStore attaches episode persistence.
func WithEpisodeStore(s EpisodeStore) Option {
	return func(m *Manager) { m.episodeStore = s }
}

// WithSkillStore attaches skill persistence.
func WithSkillStore(s SkillStore) Option {
	return func(m *Manager) { m.skillStore = s }
}

// WithRecaller attaches embedding-backed recall over the persistent tiers.
func WithRecaller(r Recaller) Option {
	return func(m *Manager) { m.recall = r }
}

// NewManager creates a memory manager. A nil config gets defaults.
func NewManager(cfg *config.MemoryConfig, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = &config.MemoryConfig{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}

	m := &Manager{
		cfg:    *cfg,
		skills: make(map[string]Skill),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.estimator == nil {
		est, err := utils.NewEstimator(cfg.Estimator, cfg.EstimatorModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create token estimator: %w", err)
		}
		m.estimator = est
	}
	return m, nil
}

// Load pulls persisted episodes and skills into memory. Call once at
// startup; load failures are errors the caller may downgrade to warnings.
func (m *Manager) Load(ctx context.Context) error {
	if m.episodeStore != nil {
		eps, err := m.episodeStore.ListEpisodes(ctx, 0)
		if err != nil {
			return fmt.Errorf("failed to load episodes: %w", err)
		}
		m.episodes = append(m.episodes, eps...)
	}
	if m.skillStore != nil {
		skills, err := m.skillStore.ListSkills(ctx)
		if err != nil {
			return fmt.Errorf("failed to load skills: %w", err)
		}
		for _, s := range skills {
			m.skills[s.Name] = s
		}
	}
	slog.Debug("Loaded persistent memory",
		"episodes", len(m.episodes),
		"skills", len(m.skills))
	return nil
}

// AddStep appends a step record to working memory. The step number and
// timestamp are assigned when absent. Compaction triggers when full records
// outgrow the cap or total entries reach the compaction threshold.
func (m *Manager) AddStep(rec StepRecord) {
	if rec.StepNumber == 0 {
		m.nextStep++
		rec.StepNumber = m.nextStep
	} else if rec.StepNumber > m.nextStep {
		m.nextStep = rec.StepNumber
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	r := rec
	m.working = append(m.working, workingEntry{record: &r})

	if len(r.Screenshot) > 0 {
		m.enforceScreenshotRetention()
	}
	if m.fullRecords() > m.cfg.WorkingMemoryCap || len(m.working) >= m.cfg.CompactThreshold {
		m.Consolidate()
	}
}

// Consolidate collapses every entry older than the preserved tail into a
// one-line summary and re-applies screenshot retention. Idempotent: entries
// already summarized are untouched, and a run with nothing to collapse is a
// no-op.
func (m *Manager) Consolidate() {
	boundary := len(m.working) - m.cfg.PreserveRecent
	changed := false
	for i := 0; i < boundary; i++ {
		e := &m.working[i]
		if e.record == nil {
			continue
		}
		e.summary = summarizeLine(e.record)
		e.record = nil
		changed = true
	}
	m.enforceScreenshotRetention()

	if !changed {
		return
	}
	m.compactions++
	if mtr := observability.GetGlobalMetrics(); mtr != nil {
		mtr.RecordCompaction(context.Background())
	}
	slog.Debug("Compacted working memory",
		"entries", len(m.working),
		"preserved", m.cfg.PreserveRecent)
}

// GetContext renders working memory alone: the tail detailedSteps entries
// in full, everything older as one-line summaries.
func (m *Manager) GetContext(detailedSteps int) string {
	return m.buildContext(context.Background(), "", detailedSteps, false)
}

// GetEnrichedContext is GetContext plus up to TopK relevant snippets per
// persistent tier, ranked against the query.
func (m *Manager) GetEnrichedContext(ctx context.Context, query string, detailedSteps int) string {
	return m.buildContext(ctx, query, detailedSteps, true)
}

// buildContext assembles the prompt and enforces the token budget: halve
// the detailed tail, then shed snippets lowest-relevance first, then shed
// the earliest summaries, and finally give up and let downstream truncate.
func (m *Manager) buildContext(ctx context.Context, query string, detailedSteps int, enrich bool) string {
	// Projected-size check before every prompt: compact first when the
	// entry count has crossed the threshold.
	if len(m.working) >= m.cfg.CompactThreshold {
		m.Consolidate()
	}

	if detailedSteps <= 0 {
		detailedSteps = m.cfg.PreserveRecent
	}

	var snippets []candidate
	if enrich {
		snippets = m.rankSnippets(ctx, query, m.cfg.TopK)
	}

	prompt := m.render(detailedSteps, snippets, 0)
	if m.withinBudget(prompt) {
		return prompt
	}

	detailedSteps /= 2
	prompt = m.render(detailedSteps, snippets, 0)
	if m.withinBudget(prompt) {
		return prompt
	}

	// Snippets are ranked descending, so shedding from the end drops the
	// least relevant first.
	for len(snippets) > 0 {
		snippets = snippets[:len(snippets)-1]
		prompt = m.render(detailedSteps, snippets, 0)
		if m.withinBudget(prompt) {
			return prompt
		}
	}

	for drop := 1; drop <= m.summaryCount(detailedSteps); drop++ {
		prompt = m.render(detailedSteps, snippets, drop)
		if m.withinBudget(prompt) {
			return prompt
		}
	}

	m.budgetExceeded++
	slog.Warn("Context still over token budget after shedding",
		"estimate", m.estimator.Estimate(prompt),
		"budget", m.cfg.TokenBudget)
	return prompt
}

func (m *Manager) withinBudget(prompt string) bool {
	return m.estimator.Estimate(prompt) <= m.cfg.TokenBudget
}

// render produces the context string: ranked snippets, then summarized
// history (skipping the earliest dropSummaries lines), then the detailed
// tail. The tail renders full records verbatim and falls back to summary
// lines for entries compaction has already collapsed.
func (m *Manager) render(detailedSteps int, snippets []candidate, dropSummaries int) string {
	var b strings.Builder

	if len(snippets) > 0 {
		b.WriteString("Relevant memory:\n")
		for _, c := range snippets {
			b.WriteString("- ")
			b.WriteString(c.content)
			b.WriteByte('\n')
		}
	}

	boundary := len(m.working) - detailedSteps
	if boundary < 0 {
		boundary = 0
	}

	if boundary > dropSummaries {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Earlier steps:\n")
		for i := dropSummaries; i < boundary; i++ {
			b.WriteString(m.line(i))
			b.WriteByte('\n')
		}
	}

	if boundary < len(m.working) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Recent steps:\n")
		for i := boundary; i < len(m.working); i++ {
			if rec := m.working[i].record; rec != nil {
				b.WriteString(renderFull(rec))
			} else {
				b.WriteString(m.working[i].summary)
			}
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// line renders entry i as a single line regardless of compaction state.
func (m *Manager) line(i int) string {
	if rec := m.working[i].record; rec != nil {
		return summarizeLine(rec)
	}
	return m.working[i].summary
}

// summaryCount is how many one-line entries precede the detailed tail.
func (m *Manager) summaryCount(detailedSteps int) int {
	n := len(m.working) - detailedSteps
	if n < 0 {
		return 0
	}
	return n
}

// rankSnippets scores all persistent-tier records against the query and
// returns up to k per tier, best first.
func (m *Manager) rankSnippets(ctx context.Context, query string, k int) []candidate {
	cands := m.scoredCandidates(ctx, query)

	picked := make([]candidate, 0, 3*k)
	perTier := make(map[string]int, 3)
	for _, c := range cands {
		if perTier[c.tier] >= k {
			continue
		}
		perTier[c.tier]++
		picked = append(picked, c)
	}
	return picked
}

// scoredCandidates builds, scores, and sorts candidates from the episodic,
// semantic, and skill tiers. Vector recall, when configured, contributes
// similarity scores that can stand in for lexical overlap; recall failures
// degrade to lexical-only ranking.
func (m *Manager) scoredCandidates(ctx context.Context, query string) []candidate {
	ctx, span := observability.GetTracer("argus.memory").Start(ctx, observability.SpanMemorySearch,
		trace.WithAttributes(attribute.Int("memory.query_len", len(query))),
	)
	defer span.End()

	cands := make([]candidate, 0, len(m.episodes)+len(m.semantic)+len(m.skills))
	for _, ep := range m.episodes {
		cands = append(cands, episodeCandidate(ep))
	}
	for _, se := range m.semantic {
		cands = append(cands, semanticCandidate(se))
	}
	for _, name := range m.skillNames() {
		cands = append(cands, skillCandidate(m.skills[name]))
	}

	vecScores := map[string]float64{}
	if m.recall != nil && query != "" {
		hits, err := m.recall.Recall(ctx, query, len(cands))
		if err != nil {
			slog.Warn("Vector recall failed, ranking lexically", "error", err)
		}
		for _, h := range hits {
			vecScores[h.ID] = clamp01(h.Score)
		}
	}

	queryWords := tokenize(query)
	now := time.Now()
	for i := range cands {
		cands[i].scoreAgainst(queryWords, vecScores, now)
	}
	sortCandidates(cands)

	span.SetAttributes(attribute.Int("memory.candidates", len(cands)))
	return cands
}

// Search returns the top results across the three persistent tiers.
func (m *Manager) Search(ctx context.Context, query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = m.cfg.TopK
	}
	cands := m.scoredCandidates(ctx, query)
	if len(cands) > limit {
		cands = cands[:limit]
	}

	results := make([]SearchResult, len(cands))
	for i, c := range cands {
		results[i] = SearchResult{Tier: c.tier, ID: c.id, Content: c.content, Score: c.score}
	}
	return results
}

// SaveEpisode records the outcome of one completed run. The episode is
// appended in memory immediately; store persistence and recall indexing run
// in the background.
func (m *Manager) SaveEpisode(taskPrompt, outcome string, success bool, duration time.Duration, tools []string, stepCount int) Episode {
	ep := Episode{
		ID:         uuid.NewString(),
		TaskPrompt: taskPrompt,
		Outcome:    outcome,
		Success:    success,
		Duration:   duration,
		ToolsUsed:  append([]string(nil), tools...),
		StepCount:  stepCount,
		Timestamp:  time.Now(),
	}
	m.episodes = append(m.episodes, ep)

	if m.episodeStore != nil {
		store := m.episodeStore
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := store.AppendEpisode(ctx, ep); err != nil {
				slog.Warn("Failed to persist episode", "episode_id", ep.ID, "error", err)
			}
		}()
	}
	m.indexForRecall(ep.ID, episodeCandidate(ep).content, TierEpisodic)
	return ep
}

// AddSemantic seeds one semantic entry, assigning an ID and timestamp when
// absent.
func (m *Manager) AddSemantic(entry SemanticEntry) SemanticEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Confidence = clamp01(entry.Confidence)
	m.semantic = append(m.semantic, entry)
	m.indexForRecall(entry.ID, semanticCandidate(entry).content, TierSemantic)
	return entry
}

// AddSkill stores a skill under its unique name, replacing any previous
// definition.
func (m *Manager) AddSkill(s Skill) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("skill name is required")
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	s.SuccessRate = clamp01(s.SuccessRate)
	m.skills[s.Name] = s

	if m.skillStore != nil {
		store := m.skillStore
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := store.PutSkill(ctx, s); err != nil {
				slog.Warn("Failed to persist skill", "skill", s.Name, "error", err)
			}
		}()
	}
	m.indexForRecall("skill:"+s.Name, skillCandidate(s).content, TierSkill)
	return nil
}

// indexForRecall pushes one record into the vector index without blocking
// the loop.
func (m *Manager) indexForRecall(id, text, tier string) {
	if m.recall == nil {
		return
	}
	recall := m.recall
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := recall.Index(ctx, id, text, map[string]interface{}{"tier": tier}); err != nil {
			slog.Warn("Failed to index memory for recall", "id", id, "error", err)
		}
	}()
}

// Screenshots returns the retained image payloads, oldest first. Retention
// keeps at most LastNScreenshots of them.
func (m *Manager) Screenshots() [][]byte {
	var shots [][]byte
	for _, e := range m.working {
		if e.record != nil && len(e.record.Screenshot) > 0 {
			shots = append(shots, e.record.Screenshot)
		}
	}
	return shots
}

// enforceScreenshotRetention strips image bytes beyond the single retention
// policy, newest kept. Records keep their place; only payloads drop.
func (m *Manager) enforceScreenshotRetention() {
	keep := m.cfg.ScreenshotRetention()
	kept := 0
	for i := len(m.working) - 1; i >= 0; i-- {
		rec := m.working[i].record
		if rec == nil || len(rec.Screenshot) == 0 {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		rec.Screenshot = nil
	}
}

// ResetWorking clears the working tier for a fresh run. Persistent tiers
// are untouched.
func (m *Manager) ResetWorking() {
	m.working = nil
	m.nextStep = 0
}

// Episodes returns a copy of the episodic tier, oldest first.
func (m *Manager) Episodes() []Episode {
	return append([]Episode(nil), m.episodes...)
}

// SemanticEntries returns a copy of the semantic tier in insertion order.
func (m *Manager) SemanticEntries() []SemanticEntry {
	return append([]SemanticEntry(nil), m.semantic...)
}

// Skills returns the skill tier sorted by name.
func (m *Manager) Skills() []Skill {
	out := make([]Skill, 0, len(m.skills))
	for _, name := range m.skillNames() {
		out = append(out, m.skills[name])
	}
	return out
}

func (m *Manager) skillNames() []string {
	names := make([]string, 0, len(m.skills))
	for name := range m.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) fullRecords() int {
	n := 0
	for _, e := range m.working {
		if e.record != nil {
			n++
		}
	}
	return n
}

// Stats reports a point-in-time view of all four tiers.
func (m *Manager) Stats() Stats {
	s := Stats{
		WorkingEntries:  len(m.working),
		Episodes:        len(m.episodes),
		SemanticEntries: len(m.semantic),
		Skills:          len(m.skills),
		Compactions:     m.compactions,
		BudgetExceeded:  m.budgetExceeded,
	}
	for _, e := range m.working {
		if e.record != nil {
			s.FullRecords++
		} else {
			s.Summaries++
		}
	}
	return s
}
