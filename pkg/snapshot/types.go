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

// Package snapshot converts the live page into a bounded, deterministic
// representation keyed by short element refs (e1, e2, ...), with a TTL
// cache and a diff mode.
//
// Refs are valid until the next fresh snapshot; the engine re-numbers them
// on every extraction and re-binds them to the driver's locators.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/argus/pkg/browser"
)

// Element is one interactive element record. Locators stay internal; the
// rendered form never exposes them.
type Element struct {
	Ref      string        `json:"ref"`
	Role     string        `json:"role"`
	Name     string        `json:"name,omitempty"`
	Value    string        `json:"value,omitempty"`
	Disabled bool          `json:"disabled,omitempty"`
	Checked  *bool         `json:"checked,omitempty"`
	Selected *bool         `json:"selected,omitempty"`
	BBox     *browser.BBox `json:"bbox,omitempty"`

	locator string
}

// Locator returns the driver-internal handle backing this element.
func (e Element) Locator() string {
	return e.locator
}

// Snapshot is an immutable page capture.
type Snapshot struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Elements  []Element `json:"elements"`

	// Truncated is set when the page had more interactive elements than
	// the configured cap.
	Truncated bool `json:"truncated,omitempty"`

	// FallbackUsed is set when the DOM-query fallback augmented the
	// accessibility tree.
	FallbackUsed bool `json:"fallback_used,omitempty"`

	refs map[string]*Element
}

// newSnapshot builds a snapshot and derives its ref index.
func newSnapshot(url, title string, ts time.Time, elements []Element, truncated, fallbackUsed bool) *Snapshot {
	s := &Snapshot{
		URL:          url,
		Title:        title,
		Timestamp:    ts,
		Elements:     elements,
		Truncated:    truncated,
		FallbackUsed: fallbackUsed,
		refs:         make(map[string]*Element, len(elements)),
	}
	for i := range s.Elements {
		s.refs[s.Elements[i].Ref] = &s.Elements[i]
	}
	return s
}

// Ref returns the element record for a ref.
func (s *Snapshot) Ref(ref string) (*Element, bool) {
	el, ok := s.refs[ref]
	return el, ok
}

// ByRole returns all elements with the given role, in snapshot order.
func (s *Snapshot) ByRole(role string) []Element {
	var out []Element
	for _, el := range s.Elements {
		if el.Role == role {
			out = append(out, el)
		}
	}
	return out
}

// FindByName returns elements whose name contains substr, case-insensitive,
// in snapshot order.
func (s *Snapshot) FindByName(substr string) []Element {
	needle := strings.ToLower(substr)
	var out []Element
	for _, el := range s.Elements {
		if strings.Contains(strings.ToLower(el.Name), needle) {
			out = append(out, el)
		}
	}
	return out
}

// Equal reports whether two snapshots capture the same page state: same URL
// and the same ordered (role, name, value, disabled, checked) tuples.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if other == nil {
		return false
	}
	if s.URL != other.URL || len(s.Elements) != len(other.Elements) {
		return false
	}
	for i := range s.Elements {
		a, b := s.Elements[i], other.Elements[i]
		if a.Role != b.Role || a.Name != b.Name || stateChanged(a, b) {
			return false
		}
	}
	return true
}

// Render produces the LLM-facing text form, one line per element.
func (s *Snapshot) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page: %s\nURL: %s\n", s.Title, s.URL)
	if len(s.Elements) == 0 {
		b.WriteString("No interactive elements found.\n")
	}
	for _, el := range s.Elements {
		b.WriteString(renderElement(el))
		b.WriteByte('\n')
	}
	if s.Truncated {
		b.WriteString("(element list truncated)\n")
	}
	return b.String()
}

func renderElement(el Element) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", el.Ref, el.Role)
	if el.Name != "" {
		fmt.Fprintf(&b, " %q", el.Name)
	}
	if el.Value != "" {
		fmt.Fprintf(&b, " value=%q", el.Value)
	}
	if el.Disabled {
		b.WriteString(" disabled")
	}
	if el.Checked != nil {
		fmt.Fprintf(&b, " checked=%t", *el.Checked)
	}
	if el.Selected != nil && *el.Selected {
		b.WriteString(" selected")
	}
	return b.String()
}

// Diff is the derived difference between two snapshots. Never cached.
//
// Fresh snapshots re-number refs, so elements are matched on (role, name)
// with position as the tiebreaker. Changed entries carry the new record.
type Diff struct {
	URL     string    `json:"url"`
	Added   []Element `json:"added,omitempty"`
	Removed []Element `json:"removed,omitempty"`
	Changed []Element `json:"changed,omitempty"`
}

// Empty reports whether the diff carries no differences.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Render produces the LLM-facing text form of the diff.
func (d *Diff) Render() string {
	if d.Empty() {
		return "Page unchanged.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Page changes (URL: %s):\n", d.URL)
	for _, el := range d.Added {
		b.WriteString("+ " + renderElement(el) + "\n")
	}
	for _, el := range d.Removed {
		b.WriteString("- " + renderElement(el) + "\n")
	}
	for _, el := range d.Changed {
		b.WriteString("~ " + renderElement(el) + "\n")
	}
	return b.String()
}

// Result is the outcome of one Get call. Exactly one of Snapshot and Diff
// is set.
type Result struct {
	Snapshot *Snapshot
	Diff     *Diff

	// CacheHit reports whether the result was served from cache. Refs from
	// a cache hit stay bound to the same driver locators.
	CacheHit bool
}

// Metrics are the engine's counters since construction.
type Metrics struct {
	SnapshotsTaken      int64         `json:"snapshots_taken"`
	CacheHits           int64         `json:"cache_hits"`
	FallbackUsed        int64         `json:"fallback_used"`
	AvgSnapshotTime     time.Duration `json:"avg_snapshot_time"`
	ElementsPerSnapshot float64       `json:"elements_per_snapshot"`
}

// computeDiff matches old and new elements on (role, name), pairing
// repeated keys by position. Changed is judged on (value, disabled,
// checked).
func computeDiff(oldSnap, newSnap *Snapshot) *Diff {
	type pairKey struct{ role, name string }

	oldQueue := make(map[pairKey][]int)
	for i, el := range oldSnap.Elements {
		k := pairKey{el.Role, el.Name}
		oldQueue[k] = append(oldQueue[k], i)
	}

	d := &Diff{URL: newSnap.URL}
	consumed := make([]bool, len(oldSnap.Elements))

	for _, el := range newSnap.Elements {
		k := pairKey{el.Role, el.Name}
		q := oldQueue[k]
		if len(q) == 0 {
			d.Added = append(d.Added, el)
			continue
		}
		oi := q[0]
		oldQueue[k] = q[1:]
		consumed[oi] = true
		if stateChanged(oldSnap.Elements[oi], el) {
			d.Changed = append(d.Changed, el)
		}
	}

	for i, el := range oldSnap.Elements {
		if !consumed[i] {
			d.Removed = append(d.Removed, el)
		}
	}
	return d
}

func stateChanged(a, b Element) bool {
	return a.Value != b.Value || a.Disabled != b.Disabled || !boolPtrEqual(a.Checked, b.Checked)
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
