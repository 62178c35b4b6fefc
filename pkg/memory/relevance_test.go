package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	words := tokenize("Click the \"Login\" button, then wait.")

	assert.Contains(t, words, "click")
	assert.Contains(t, words, "login")
	assert.Contains(t, words, "button")
	assert.Contains(t, words, "wait")
	assert.NotContains(t, words, "the", "short words are skipped")
}

func TestLexicalOverlap(t *testing.T) {
	query := tokenize("submit login form")

	assert.Equal(t, 1.0, lexicalOverlap(query, tokenize("login form submit button")))
	assert.InDelta(t, 1.0/3.0, lexicalOverlap(query, tokenize("the login page")), 1e-9)
	assert.Equal(t, 0.0, lexicalOverlap(query, tokenize("unrelated words entirely")))
	assert.Equal(t, 0.0, lexicalOverlap(nil, tokenize("anything")))
}

func TestRecency(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 0.0, recency(time.Time{}, now))
	assert.Equal(t, 1.0, recency(now, now))
	assert.InDelta(t, 0.5, recency(now.Add(-recencyHorizon/2), now), 0.01)
	assert.Equal(t, 0.0, recency(now.Add(-recencyHorizon-time.Hour), now))
}

func TestScoreAgainst_VectorSubstitution(t *testing.T) {
	now := time.Now()
	c := candidate{id: "ep1", timestamp: now, utility: 0, words: tokenize("unrelated content")}
	query := tokenize("login form")

	c.scoreAgainst(query, nil, now)
	lexOnly := c.score

	c.scoreAgainst(query, map[string]float64{"ep1": 0.9}, now)
	assert.Greater(t, c.score, lexOnly, "vector similarity stands in for missing lexical overlap")

	// A weaker vector score never drags a strong lexical match down.
	c.words = tokenize("login form")
	c.scoreAgainst(query, map[string]float64{"ep1": 0.1}, now)
	assert.InDelta(t, weightRecency+weightLexical, c.score, 1e-9)
}

func TestSortCandidates_Deterministic(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Hour)

	cands := []candidate{
		{tier: TierSkill, id: "skill:b", timestamp: older, score: 0.5},
		{tier: TierEpisodic, id: "ep2", timestamp: now, score: 0.5},
		{tier: TierEpisodic, id: "ep1", timestamp: now, score: 0.5},
		{tier: TierSemantic, id: "sem1", timestamp: now, score: 0.9},
	}
	sortCandidates(cands)

	assert.Equal(t, "sem1", cands[0].id, "highest score first")
	assert.Equal(t, "ep1", cands[1].id, "ties break newest, then tier, then ID")
	assert.Equal(t, "ep2", cands[2].id)
	assert.Equal(t, "skill:b", cands[3].id)
}

func TestEpisodeCandidate(t *testing.T) {
	ep := Episode{
		ID:         "ep1",
		TaskPrompt: "log into example.com",
		Outcome:    "logged in",
		Success:    true,
		StepCount:  8,
		Timestamp:  time.Now(),
	}

	c := episodeCandidate(ep)
	assert.Equal(t, TierEpisodic, c.tier)
	assert.Equal(t, "[episodic] log into example.com → logged in (ok, 8 steps)", c.content)
	assert.Equal(t, 1.0, c.utility)

	ep.Success = false
	assert.Equal(t, 0.0, episodeCandidate(ep).utility)

	ep.Importance = 0.7
	assert.Equal(t, 0.7, episodeCandidate(ep).utility, "explicit importance wins")
}

func TestSemanticCandidate(t *testing.T) {
	se := SemanticEntry{ID: "sem1", Pattern: "cookie banners hide the login button", Confidence: 0.85, EvidenceCount: 4}

	c := semanticCandidate(se)
	assert.Equal(t, TierSemantic, c.tier)
	assert.Equal(t, "[semantic] cookie banners hide the login button (confidence 0.85, evidence 4)", c.content)
	assert.Equal(t, 0.85, c.utility)
}

func TestSkillCandidate(t *testing.T) {
	sk := Skill{
		Name:           "login",
		Description:    "fill and submit a login form",
		ActionSequence: []string{"click", "type", "press"},
		SuccessRate:    0.92,
	}

	c := skillCandidate(sk)
	assert.Equal(t, TierSkill, c.tier)
	assert.Equal(t, "skill:login", c.id)
	assert.Equal(t, "[skill] login: fill and submit a login form (sequence: click → type → press; success 92%)", c.content)
	assert.InDelta(t, 0.92, c.utility, 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 0.5, clamp01(0.5))
	assert.Equal(t, 1.0, clamp01(3))
}
