package snapshot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/testutils"
)

func testCfg() *config.SnapshotConfig {
	return &config.SnapshotConfig{
		CacheTTL:      0,
		MaxElements:   100,
		MaxTextLen:    200,
		FallbackFloor: 0,
		MaxCachedURLs: 8,
	}
}

func TestEngine_Get_Fresh(t *testing.T) {
	d := testutils.NewMockDriver()
	d.URL = "https://example.com/"
	d.PageTitle = "Example"
	d.SetNodes([]browser.AXNode{
		{Role: "textbox", Name: "Search", Locator: "1"},
		{Role: "navigation", Name: "Main nav", Locator: "2"},
		{Role: "button", Name: "Go", Locator: "3"},
		{Role: "img", Name: "", Locator: "4"},
		{Role: "img", Name: "Logo", Locator: "5"},
	})

	e := NewEngine(testCfg(), d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Nil(t, res.Diff)
	assert.False(t, res.CacheHit)

	snap := res.Snapshot
	assert.Equal(t, "https://example.com/", snap.URL)
	assert.Equal(t, "Example", snap.Title)

	// Landmark roles and unnamed images are filtered out.
	require.Len(t, snap.Elements, 3)
	assert.Equal(t, "e1", snap.Elements[0].Ref)
	assert.Equal(t, "textbox", snap.Elements[0].Role)
	assert.Equal(t, "e2", snap.Elements[1].Ref)
	assert.Equal(t, "button", snap.Elements[1].Role)
	assert.Equal(t, "e3", snap.Elements[2].Ref)
	assert.Equal(t, "img", snap.Elements[2].Role)

	// Refs were bound to the driver's locators.
	assert.Equal(t, map[string]string{"e1": "1", "e2": "3", "e3": "5"}, d.BoundRefs)

	el, ok := snap.Ref("e2")
	require.True(t, ok)
	assert.Equal(t, "Go", el.Name)
}

func TestEngine_CacheHit(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.CacheTTL = time.Minute

	e := NewEngine(cfg, d)
	ctx := context.Background()

	first, err := e.Get(ctx, false, false)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := e.Get(ctx, false, false)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Same(t, first.Snapshot, second.Snapshot)

	assert.Equal(t, 1, d.CallCount("AccessibilityTree"))
}

func TestEngine_CacheTTLZero_AlwaysFresh(t *testing.T) {
	d := testutils.NewMockDriver()
	e := NewEngine(testCfg(), d)
	ctx := context.Background()

	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)
	res, err := e.Get(ctx, false, false)
	require.NoError(t, err)

	assert.False(t, res.CacheHit)
	assert.Equal(t, 2, d.CallCount("AccessibilityTree"))
}

func TestEngine_ForceBypassesCache(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.CacheTTL = time.Minute

	e := NewEngine(cfg, d)
	ctx := context.Background()

	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)
	res, err := e.Get(ctx, true, false)
	require.NoError(t, err)

	assert.False(t, res.CacheHit)
	assert.Equal(t, 2, d.CallCount("AccessibilityTree"))
}

func TestEngine_TypeStability(t *testing.T) {
	d := testutils.NewMockDriver()
	e := NewEngine(testCfg(), d)
	ctx := context.Background()

	// No previous snapshot: diff mode still returns a snapshot and seeds
	// the pointer.
	res, err := e.Get(ctx, false, true)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Nil(t, res.Diff)

	// Previous exists now: diff mode always returns a diff.
	res, err = e.Get(ctx, false, true)
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	assert.Nil(t, res.Snapshot)
}

func TestEngine_Diff(t *testing.T) {
	d := testutils.NewMockDriver()
	d.SetNodes([]browser.AXNode{
		{Role: "textbox", Name: "Search", Value: "", Locator: "1"},
		{Role: "button", Name: "Go", Locator: "2"},
	})

	e := NewEngine(testCfg(), d)
	ctx := context.Background()

	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)

	d.SetNodes([]browser.AXNode{
		{Role: "textbox", Name: "Search", Value: "hello", Locator: "1"},
		{Role: "link", Name: "Next", Locator: "3"},
	})

	res, err := e.Get(ctx, false, true)
	require.NoError(t, err)
	require.NotNil(t, res.Diff)

	diff := res.Diff
	require.Len(t, diff.Changed, 1)
	assert.Equal(t, "textbox", diff.Changed[0].Role)
	assert.Equal(t, "hello", diff.Changed[0].Value)

	require.Len(t, diff.Added, 1)
	assert.Equal(t, "link", diff.Added[0].Role)

	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "button", diff.Removed[0].Role)
}

func TestEngine_CacheHitDiffMode(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.CacheTTL = time.Minute

	e := NewEngine(cfg, d)
	ctx := context.Background()

	// Snapshot A on page one.
	d.URL = "https://example.com/one"
	d.SetNodes([]browser.AXNode{{Role: "button", Name: "One", Locator: "1"}})
	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)

	// Snapshot B on page two; previous pointer now B.
	d.URL = "https://example.com/two"
	d.SetNodes([]browser.AXNode{{Role: "button", Name: "Two", Locator: "1"}})
	_, err = e.Get(ctx, false, false)
	require.NoError(t, err)

	// Back on page one: cache hit in diff mode diffs B -> A.
	d.URL = "https://example.com/one"
	res, err := e.Get(ctx, false, true)
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	assert.True(t, res.CacheHit)

	require.Len(t, res.Diff.Added, 1)
	assert.Equal(t, "One", res.Diff.Added[0].Name)
	require.Len(t, res.Diff.Removed, 1)
	assert.Equal(t, "Two", res.Diff.Removed[0].Name)
}

func TestEngine_CacheDiffCoherence(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.CacheTTL = time.Minute

	e := NewEngine(cfg, d)
	ctx := context.Background()

	// Snapshot A on page one, snapshot B on page two.
	d.URL = "https://example.com/one"
	d.SetNodes([]browser.AXNode{{Role: "button", Name: "One", Locator: "1"}})
	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)

	d.URL = "https://example.com/two"
	d.SetNodes([]browser.AXNode{{Role: "button", Name: "Two", Locator: "1"}})
	_, err = e.Get(ctx, false, false)
	require.NoError(t, err)

	// Cache hit on page one moves the previous pointer to A.
	d.URL = "https://example.com/one"
	hit, err := e.Get(ctx, false, false)
	require.NoError(t, err)
	require.True(t, hit.CacheHit)

	// The next fresh diff must be computed against A, not B.
	d.SetNodes([]browser.AXNode{
		{Role: "button", Name: "One", Locator: "1"},
		{Role: "link", Name: "Extra", Locator: "2"},
	})
	res, err := e.Get(ctx, true, true)
	require.NoError(t, err)
	require.NotNil(t, res.Diff)

	require.Len(t, res.Diff.Added, 1)
	assert.Equal(t, "Extra", res.Diff.Added[0].Name)
	assert.Empty(t, res.Diff.Removed)
	assert.Empty(t, res.Diff.Changed)
}

func TestEngine_RefUniqueness(t *testing.T) {
	nodes := make([]browser.AXNode, 0, 30)
	for i := 0; i < 30; i++ {
		nodes = append(nodes, browser.AXNode{Role: "button", Name: "Repeat", Locator: ""})
	}
	d := testutils.NewMockDriver()
	d.SetNodes(nodes)

	e := NewEngine(testCfg(), d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, el := range res.Snapshot.Elements {
		assert.False(t, seen[el.Ref], "duplicate ref %s", el.Ref)
		seen[el.Ref] = true
	}
	assert.Len(t, seen, 30)
}

func TestEngine_Fallback(t *testing.T) {
	d := testutils.NewMockDriver()
	d.SetNodes([]browser.AXNode{
		{Role: "button", Name: "Only", Locator: "1"},
	})
	d.FallbackNodes = []browser.AXNode{
		{Role: "button", Name: "Only", Locator: "1"},
		{Role: "link", Name: "Hidden from tree", Locator: "2"},
	}

	cfg := testCfg()
	cfg.FallbackFloor = 5

	e := NewEngine(cfg, d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	snap := res.Snapshot
	assert.True(t, snap.FallbackUsed)
	// Fallback elements never duplicate tree elements.
	require.Len(t, snap.Elements, 2)
	assert.Equal(t, "e1", snap.Elements[0].Ref)
	assert.Equal(t, "Only", snap.Elements[0].Name)
	assert.Equal(t, "e2", snap.Elements[1].Ref)
	assert.Equal(t, "Hidden from tree", snap.Elements[1].Name)

	assert.Equal(t, 1, d.CallCount("QueryElements"))
}

func TestEngine_NoFallbackAboveFloor(t *testing.T) {
	d := testutils.NewMockDriver()
	d.SetNodes([]browser.AXNode{
		{Role: "button", Name: "A", Locator: "1"},
		{Role: "button", Name: "B", Locator: "2"},
	})

	cfg := testCfg()
	cfg.FallbackFloor = 2

	e := NewEngine(cfg, d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	assert.False(t, res.Snapshot.FallbackUsed)
	assert.Equal(t, 0, d.CallCount("QueryElements"))
}

func TestEngine_MaxElementsBounding(t *testing.T) {
	d := testutils.NewMockDriver()
	d.SetNodes([]browser.AXNode{
		{Role: "button", Name: "A", Locator: "1"},
		{Role: "button", Name: "B", Locator: "2"},
		{Role: "button", Name: "C", Locator: "3"},
	})

	cfg := testCfg()
	cfg.MaxElements = 2

	e := NewEngine(cfg, d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	snap := res.Snapshot
	assert.True(t, snap.Truncated)
	require.Len(t, snap.Elements, 2)
	assert.Equal(t, "A", snap.Elements[0].Name)
	assert.Equal(t, "B", snap.Elements[1].Name)
}

func TestEngine_MaxElementsZero(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.MaxElements = 0

	e := NewEngine(cfg, d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	// Non-empty page with a zero cap: empty but flagged truncated.
	assert.Empty(t, res.Snapshot.Elements)
	assert.True(t, res.Snapshot.Truncated)
}

func TestEngine_EmptyPage(t *testing.T) {
	d := testutils.NewMockDriver()
	d.SetNodes(nil)

	e := NewEngine(testCfg(), d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	assert.Empty(t, res.Snapshot.Elements)
	assert.False(t, res.Snapshot.Truncated)
}

func TestEngine_TextLimiting(t *testing.T) {
	longName := strings.Repeat("x", 300)
	d := testutils.NewMockDriver()
	d.SetNodes([]browser.AXNode{
		{Role: "button", Name: longName, Value: longName, Locator: "1"},
	})

	cfg := testCfg()
	cfg.MaxTextLen = 10

	e := NewEngine(cfg, d)
	res, err := e.Get(context.Background(), false, false)
	require.NoError(t, err)

	el := res.Snapshot.Elements[0]
	assert.Equal(t, strings.Repeat("x", 10)+"...", el.Name)
	assert.Equal(t, strings.Repeat("x", 10)+"...", el.Value)
}

func TestEngine_Invalidate(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.CacheTTL = time.Minute

	e := NewEngine(cfg, d)
	ctx := context.Background()

	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)

	e.Invalidate()

	// Cache is gone: next Get is fresh.
	res, err := e.Get(ctx, false, true)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	// Previous pointer is gone too: diff mode returns a snapshot.
	require.NotNil(t, res.Snapshot)
	assert.Nil(t, res.Diff)

	assert.Equal(t, 2, d.CallCount("AccessibilityTree"))
}

func TestEngine_DriverErrorPropagates(t *testing.T) {
	d := testutils.NewMockDriver()
	driverErr := errors.New("tab crashed")
	d.SetOpError(driverErr)

	e := NewEngine(testCfg(), d)
	_, err := e.Get(context.Background(), false, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, driverErr))

	// No retries inside the engine.
	assert.Equal(t, 1, d.CallCount("CurrentURL"))
	assert.Equal(t, 0, d.CallCount("AccessibilityTree"))
}

func TestEngine_Metrics(t *testing.T) {
	d := testutils.NewMockDriver()
	cfg := testCfg()
	cfg.CacheTTL = time.Minute
	cfg.FallbackFloor = 5

	e := NewEngine(cfg, d)
	ctx := context.Background()

	_, err := e.Get(ctx, false, false)
	require.NoError(t, err)
	_, err = e.Get(ctx, false, false)
	require.NoError(t, err)
	_, err = e.Get(ctx, true, false)
	require.NoError(t, err)

	m := e.Metrics()
	assert.Equal(t, int64(2), m.SnapshotsTaken)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(2), m.FallbackUsed)
	assert.Equal(t, float64(2), m.ElementsPerSnapshot)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "abcde...", truncateText("abcdefgh", 5))
	assert.Equal(t, "unlimited", truncateText("unlimited", 0))
}
