package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Relevance weights. Recency and lexical overlap dominate; historical
// utility settles the rest.
const (
	weightRecency = 0.4
	weightLexical = 0.4
	weightUtility = 0.2
)

// recencyHorizon is the age at which recency decays to zero.
const recencyHorizon = 30 * 24 * time.Hour

// candidate is one persistent-tier record under consideration for ranking.
type candidate struct {
	tier      string
	id        string
	content   string
	timestamp time.Time
	utility   float64
	words     map[string]struct{}
	score     float64
}

// tokenize splits text into lowercase words, trimming punctuation and
// skipping very short words.
func tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) > 2 {
			words[word] = struct{}{}
		}
	}
	return words
}

// lexicalOverlap is the fraction of query words present in the document.
func lexicalOverlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	var hits float64
	for w := range query {
		if _, ok := doc[w]; ok {
			hits++
		}
	}
	return hits / float64(len(query))
}

// recency maps age onto [0, 1], decaying linearly over the horizon.
func recency(ts, now time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	if age >= recencyHorizon {
		return 0
	}
	return 1 - float64(age)/float64(recencyHorizon)
}

// scoreAgainst computes the candidate's relevance. When a vector hit exists
// for the candidate, the stronger of lexical overlap and vector similarity
// counts; the lexical scorer stays the default.
func (c *candidate) scoreAgainst(query map[string]struct{}, vecScores map[string]float64, now time.Time) {
	lexical := lexicalOverlap(query, c.words)
	if vec, ok := vecScores[c.id]; ok && vec > lexical {
		lexical = vec
	}
	c.score = weightRecency*recency(c.timestamp, now) +
		weightLexical*lexical +
		weightUtility*c.utility
}

// sortCandidates orders by score descending with a deterministic tie-break:
// newer first, then tier name, then ID.
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if !cands[i].timestamp.Equal(cands[j].timestamp) {
			return cands[i].timestamp.After(cands[j].timestamp)
		}
		if cands[i].tier != cands[j].tier {
			return cands[i].tier < cands[j].tier
		}
		return cands[i].id < cands[j].id
	})
}

func episodeCandidate(ep Episode) candidate {
	outcome := "ok"
	if !ep.Success {
		outcome = "failed"
	}
	utility := 0.0
	if ep.Success {
		utility = 1.0
	}
	if ep.Importance > 0 {
		utility = clamp01(ep.Importance)
	}
	search := strings.Join(append(append([]string{ep.TaskPrompt, ep.Outcome}, ep.Tags...), ep.ToolsUsed...), " ")
	return candidate{
		tier:      TierEpisodic,
		id:        ep.ID,
		content:   fmt.Sprintf("[episodic] %s → %s (%s, %d steps)", ep.TaskPrompt, ep.Outcome, outcome, ep.StepCount),
		timestamp: ep.Timestamp,
		utility:   utility,
		words:     tokenize(search),
	}
}

func semanticCandidate(se SemanticEntry) candidate {
	return candidate{
		tier:      TierSemantic,
		id:        se.ID,
		content:   fmt.Sprintf("[semantic] %s (confidence %.2f, evidence %d)", se.Pattern, se.Confidence, se.EvidenceCount),
		timestamp: se.Timestamp,
		utility:   clamp01(se.Confidence),
		words:     tokenize(se.Pattern),
	}
}

func skillCandidate(sk Skill) candidate {
	return candidate{
		tier:      TierSkill,
		id:        "skill:" + sk.Name,
		content:   fmt.Sprintf("[skill] %s: %s (sequence: %s; success %.0f%%)", sk.Name, sk.Description, strings.Join(sk.ActionSequence, " → "), sk.SuccessRate*100),
		timestamp: sk.Timestamp,
		utility:   clamp01(sk.SuccessRate),
		words:     tokenize(sk.Name + " " + sk.Description + " " + strings.Join(sk.ActionSequence, " ")),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
