package memory

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// summaryObservationMax clips observations inside summary lines.
	summaryObservationMax = 80

	// argValueMax clips individual argument values inside summaries.
	argValueMax = 40
)

// summarizeLine collapses a step record to a single line:
//
//	Step 3: click(ref=e12) → ok: clicked e12
//
// The line is what survives compaction, so it carries only the action, a
// compact argument summary, and a clipped observation.
func summarizeLine(rec *StepRecord) string {
	outcome := "ok"
	if !rec.Success {
		outcome = "failed"
	}
	line := fmt.Sprintf("Step %d: %s(%s) → %s", rec.StepNumber, rec.Action, argsSummary(rec.Args), outcome)
	if obs := truncate(strings.TrimSpace(rec.Observation), summaryObservationMax); obs != "" {
		line += ": " + obs
	}
	return line
}

// argsSummary renders arguments as sorted key=value pairs. Sorting keeps
// summaries stable across runs of the same map.
func argsSummary(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+truncate(fmt.Sprintf("%v", args[k]), argValueMax))
	}
	return strings.Join(parts, ", ")
}

// renderFull renders a preserved-tail record with its full observation.
func renderFull(rec *StepRecord) string {
	outcome := "ok"
	if !rec.Success {
		outcome = "failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d: %s(%s) → %s", rec.StepNumber, rec.Action, argsSummary(rec.Args), outcome)
	if obs := strings.TrimSpace(rec.Observation); obs != "" {
		b.WriteString("\n  ")
		b.WriteString(obs)
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
