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

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/observability"
)

// interactiveRoles is the base allowlist of roles kept from the
// accessibility tree. Extended per-engine via SnapshotConfig.ExtraRoles.
// Images are kept only when they carry an accessible name.
var interactiveRoles = map[string]bool{
	"button":    true,
	"link":      true,
	"textbox":   true,
	"checkbox":  true,
	"combobox":  true,
	"listbox":   true,
	"searchbox": true,
	"option":    true,
	"radio":     true,
	"slider":    true,
	"menuitem":  true,
	"tab":       true,
	"heading":   true,
	"img":       true,
}

type cacheEntry struct {
	snap *Snapshot
	at   time.Time
}

// Engine owns the snapshot cache and the previous-snapshot pointer used for
// diffs. One engine per driver; safe for concurrent use.
type Engine struct {
	cfg    config.SnapshotConfig
	driver browser.Driver
	roles  map[string]bool

	mu       sync.Mutex
	cache    *lru.Cache
	previous *Snapshot

	snapshotsTaken int64
	cacheHits      int64
	fallbacks      int64
	totalTime      time.Duration
	totalElements  int64
}

// NewEngine creates a snapshot engine over a driver. The config is taken
// literally: CacheTTL=0 disables caching and MaxElements=0 yields empty
// snapshots. The loader applies defaults before configs reach this point.
func NewEngine(cfg *config.SnapshotConfig, driver browser.Driver) *Engine {
	resolved := config.SnapshotConfig{}
	if cfg != nil {
		resolved = *cfg
	}

	roles := make(map[string]bool, len(interactiveRoles)+len(resolved.ExtraRoles))
	for r := range interactiveRoles {
		roles[r] = true
	}
	for _, r := range resolved.ExtraRoles {
		roles[r] = true
	}

	size := resolved.MaxCachedURLs
	if size <= 0 {
		size = 8
	}
	cache, _ := lru.New(size)

	return &Engine{
		cfg:    resolved,
		driver: driver,
		roles:  roles,
		cache:  cache,
	}
}

// Get returns the current page state. With diffMode, a Diff against the
// previous snapshot is returned when one exists; otherwise a Snapshot.
// force bypasses the cache. Refs in a fresh snapshot replace all earlier
// refs; a cache hit keeps the existing binding.
func (e *Engine) Get(ctx context.Context, force, diffMode bool) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	url, err := e.driver.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("current url: %w", err)
	}

	if !force && e.cfg.CacheTTL > 0 {
		if v, ok := e.cache.Get(url); ok {
			entry := v.(cacheEntry)
			if time.Since(entry.at) < e.cfg.CacheTTL {
				return e.serveHit(ctx, entry.snap, diffMode), nil
			}
		}
	}

	start := time.Now()
	snap, err := e.extract(ctx, url)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	e.snapshotsTaken++
	e.totalTime += elapsed
	e.totalElements += int64(len(snap.Elements))
	if snap.FallbackUsed {
		e.fallbacks++
	}
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordSnapshot(ctx, false, elapsed, len(snap.Elements))
	}
	slog.Debug("Snapshot taken",
		"url", url,
		"elements", len(snap.Elements),
		"truncated", snap.Truncated,
		"fallback", snap.FallbackUsed,
		"duration", elapsed,
	)

	if e.cfg.CacheTTL > 0 {
		e.cache.Add(url, cacheEntry{snap: snap, at: time.Now()})
	}

	prev := e.previous
	e.previous = snap

	if diffMode && prev != nil {
		return &Result{Diff: computeDiff(prev, snap)}, nil
	}
	return &Result{Snapshot: snap}, nil
}

// serveHit returns a cached snapshot, moving the previous-snapshot pointer
// to the served value so later diffs never compare against stale state. In
// diff mode the diff is computed against the prior pointer first.
func (e *Engine) serveHit(ctx context.Context, snap *Snapshot, diffMode bool) *Result {
	e.cacheHits++
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordSnapshot(ctx, true, 0, len(snap.Elements))
	}

	if diffMode && e.previous != nil {
		d := computeDiff(e.previous, snap)
		e.previous = snap
		return &Result{Diff: d, CacheHit: true}
	}

	e.previous = snap
	return &Result{Snapshot: snap, CacheHit: true}
}

// extract performs one fresh extraction: tree walk, optional DOM fallback,
// bounding, text limiting, ref assignment and driver binding.
func (e *Engine) extract(ctx context.Context, url string) (*Snapshot, error) {
	nodes, err := e.driver.AccessibilityTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("accessibility tree: %w", err)
	}

	kept := make([]browser.AXNode, 0, len(nodes))
	for _, n := range nodes {
		if !e.roles[n.Role] {
			continue
		}
		if n.Role == "img" && n.Name == "" {
			continue
		}
		kept = append(kept, n)
	}

	fallbackUsed := false
	if len(kept) < e.cfg.FallbackFloor {
		selectors := e.cfg.FallbackSelectors
		if len(selectors) == 0 {
			selectors = browser.DefaultFallbackSelectors
		}
		extra, err := e.driver.QueryElements(ctx, selectors)
		if err != nil {
			return nil, fmt.Errorf("fallback query: %w", err)
		}
		fallbackUsed = true
		kept = append(kept, dedupe(kept, extra)...)
	}

	truncated := false
	bound := e.cfg.MaxElements
	if bound < 0 {
		bound = 0
	}
	if len(kept) > bound {
		kept = kept[:bound]
		truncated = true
	}

	elements := make([]Element, len(kept))
	refTable := make(map[string]string, len(kept))
	for i, n := range kept {
		ref := fmt.Sprintf("e%d", i+1)
		elements[i] = Element{
			Ref:      ref,
			Role:     n.Role,
			Name:     truncateText(n.Name, e.cfg.MaxTextLen),
			Value:    truncateText(n.Value, e.cfg.MaxTextLen),
			Disabled: n.Disabled,
			Checked:  n.Checked,
			Selected: n.Selected,
			BBox:     n.BBox,
			locator:  n.Locator,
		}
		if n.Locator != "" {
			refTable[ref] = n.Locator
		}
	}

	title, err := e.driver.Title(ctx)
	if err != nil {
		return nil, fmt.Errorf("page title: %w", err)
	}

	e.driver.BindRefs(refTable)

	return newSnapshot(url, title, time.Now(), elements, truncated, fallbackUsed), nil
}

// dedupe drops fallback nodes already present in the tree pass, matching on
// locator when available and on (role, name) otherwise.
func dedupe(kept, extra []browser.AXNode) []browser.AXNode {
	locators := make(map[string]bool, len(kept))
	pairs := make(map[[2]string]bool, len(kept))
	for _, n := range kept {
		if n.Locator != "" {
			locators[n.Locator] = true
		}
		pairs[[2]string{n.Role, n.Name}] = true
	}

	out := make([]browser.AXNode, 0, len(extra))
	for _, n := range extra {
		if n.Locator != "" {
			if locators[n.Locator] {
				continue
			}
		} else if pairs[[2]string{n.Role, n.Name}] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Invalidate drops the cache and the previous-snapshot pointer. Safe to
// call at any time; never fails.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Purge()
	e.previous = nil
}

// Metrics returns the engine's counters since construction.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := Metrics{
		SnapshotsTaken: e.snapshotsTaken,
		CacheHits:      e.cacheHits,
		FallbackUsed:   e.fallbacks,
	}
	if e.snapshotsTaken > 0 {
		m.AvgSnapshotTime = e.totalTime / time.Duration(e.snapshotsTaken)
		m.ElementsPerSnapshot = float64(e.totalElements) / float64(e.snapshotsTaken)
	}
	return m
}

// truncateText caps s at max runes, appending an ellipsis. max <= 0 means
// no limit.
func truncateText(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
