package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/testutils"
)

func testCfg() *config.ExecutorConfig {
	return &config.ExecutorConfig{
		MaxRetries:      2,
		RetryBaseDelay:  time.Millisecond,
		HealthCacheTTL:  time.Minute,
		NavigateTimeout: time.Second,
		ActionTimeout:   time.Second,
		MaxWait:         time.Minute,
		MaxTextLen:      10_000,
		MaxURLLen:       2048,
	}
}

type countingInvalidator struct {
	count int
}

func (c *countingInvalidator) Invalidate() { c.count++ }

func TestApply_Click(t *testing.T) {
	d := testutils.NewMockDriver()
	inv := &countingInvalidator{}
	x := NewExecutor(testCfg(), d, inv)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.True(t, res.Success)
	assert.Equal(t, ClassOK, res.Classification)
	assert.Equal(t, "clicked e1", res.Observation)
	assert.Equal(t, 0, res.RetriesUsed)
	assert.Equal(t, 1, d.CallCount("Click"))

	// Click mutates, so the snapshot cache is dropped.
	assert.Equal(t, 1, inv.count)
}

func TestApply_NonMutatingKeepsCache(t *testing.T) {
	d := testutils.NewMockDriver()
	d.BodyText = "hello"
	inv := &countingInvalidator{}
	x := NewExecutor(testCfg(), d, inv)

	x.Apply(context.Background(), ActionScroll, map[string]interface{}{"direction": "down"})
	x.Apply(context.Background(), ActionHover, map[string]interface{}{"ref": "e1"})
	x.Apply(context.Background(), ActionScreenshot, nil)
	x.Apply(context.Background(), ActionReadText, nil)
	x.Apply(context.Background(), ActionWait, map[string]interface{}{"seconds": 0.001})

	assert.Equal(t, 0, inv.count)
}

func TestApply_ValidationNeverReachesDriver(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		args   map[string]interface{}
	}{
		{"navigate without url", ActionNavigate, nil},
		{"navigate bad scheme", ActionNavigate, map[string]interface{}{"url": "ftp://example.com"}},
		{"navigate url too long", ActionNavigate, map[string]interface{}{"url": "https://" + strings.Repeat("a", 2048)}},
		{"click without ref", ActionClick, nil},
		{"click empty ref", ActionClick, map[string]interface{}{"ref": ""}},
		{"type without text", ActionType, map[string]interface{}{"ref": "e1"}},
		{"type text too long", ActionType, map[string]interface{}{"ref": "e1", "text": strings.Repeat("x", 10_001)}},
		{"type non-string text", ActionType, map[string]interface{}{"ref": "e1", "text": 42}},
		{"press without key", ActionPress, nil},
		{"select without value", ActionSelect, map[string]interface{}{"ref": "e1"}},
		{"scroll bad direction", ActionScroll, map[string]interface{}{"direction": "sideways"}},
		{"scroll negative amount", ActionScroll, map[string]interface{}{"amount": -5.0}},
		{"wait without seconds", ActionWait, nil},
		{"wait zero seconds", ActionWait, map[string]interface{}{"seconds": 0.0}},
		{"timeout below floor", ActionClick, map[string]interface{}{"ref": "e1", "timeout": 0.01}},
		{"timeout above cap", ActionClick, map[string]interface{}{"ref": "e1", "timeout": 301.0}},
		{"done is not executable", ActionDone, nil},
		{"unknown action", Action("teleport"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testutils.NewMockDriver()
			x := NewExecutor(testCfg(), d, nil)

			res := x.Apply(context.Background(), tt.action, tt.args)

			assert.False(t, res.Success)
			assert.Equal(t, ClassPermanent, res.Classification)
			assert.NotEmpty(t, res.Observation)
			assert.Empty(t, d.Calls, "driver must not be reached on invalid input")
		})
	}
}

func TestApply_HealthGateBlocks(t *testing.T) {
	d := testutils.NewMockDriver()
	d.HealthFunc = func(ctx context.Context) error {
		return browser.ErrUnhealthy
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.False(t, res.Success)
	assert.Equal(t, ClassPermanent, res.Classification)
	assert.Equal(t, "browser unhealthy", res.Observation)
	assert.Equal(t, 0, d.CallCount("Click"))
}

func TestApply_HealthProbeCached(t *testing.T) {
	d := testutils.NewMockDriver()
	x := NewExecutor(testCfg(), d, nil)

	x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})
	x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e2"})

	assert.Equal(t, 1, d.CallCount("Health"))
	assert.Equal(t, 2, d.CallCount("Click"))
}

func TestApply_UnhealthyCacheReprobes(t *testing.T) {
	d := testutils.NewMockDriver()
	down := true
	d.HealthFunc = func(ctx context.Context) error {
		if down {
			return browser.ErrUnhealthy
		}
		return nil
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})
	require.Equal(t, ClassPermanent, res.Classification)

	// The browser comes back; the cached unhealthy verdict must not block
	// the next action for a full TTL.
	down = false
	res = x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.True(t, res.Success)
	assert.Equal(t, 2, d.CallCount("Health"))
}

func TestApply_RetriesTransient(t *testing.T) {
	d := testutils.NewMockDriver()
	attempts := 0
	d.ClickFunc = func(ctx context.Context, ref string) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("connection reset by peer")
		}
		return nil
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.True(t, res.Success)
	assert.Equal(t, ClassOK, res.Classification)
	assert.Equal(t, 2, res.RetriesUsed)
	assert.Equal(t, 3, attempts)
}

func TestApply_PermanentSkipsRetries(t *testing.T) {
	d := testutils.NewMockDriver()
	attempts := 0
	d.ClickFunc = func(ctx context.Context, ref string) error {
		attempts++
		return fmt.Errorf("click %s: %w", ref, browser.ErrElementNotFound)
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e9"})

	assert.False(t, res.Success)
	assert.Equal(t, ClassPermanent, res.Classification)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, res.Observation, "element not found")
}

func TestApply_TransientExhausted(t *testing.T) {
	d := testutils.NewMockDriver()
	attempts := 0
	d.ClickFunc = func(ctx context.Context, ref string) error {
		attempts++
		return fmt.Errorf("driver temporarily unavailable")
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.False(t, res.Success)
	assert.Equal(t, ClassTransient, res.Classification)
	assert.Equal(t, 2, res.RetriesUsed)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, res.Observation, "temporarily unavailable")
}

func TestApply_TimeoutClassification(t *testing.T) {
	d := testutils.NewMockDriver()
	d.ClickFunc = func(ctx context.Context, ref string) error {
		return context.DeadlineExceeded
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.False(t, res.Success)
	assert.Equal(t, ClassTimeout, res.Classification)
	assert.Equal(t, 2, res.RetriesUsed)
}

func TestApply_FailedMutatingActionKeepsCache(t *testing.T) {
	d := testutils.NewMockDriver()
	d.ClickFunc = func(ctx context.Context, ref string) error {
		return browser.ErrElementNotFound
	}
	inv := &countingInvalidator{}
	x := NewExecutor(testCfg(), d, inv)

	x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})

	assert.Equal(t, 0, inv.count)
}

func TestApply_BackoffCancellable(t *testing.T) {
	cfg := testCfg()
	cfg.RetryBaseDelay = 10 * time.Second

	d := testutils.NewMockDriver()
	d.ClickFunc = func(ctx context.Context, ref string) error {
		return fmt.Errorf("driver busy, temporarily unavailable")
	}
	x := NewExecutor(cfg, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := x.Apply(ctx, ActionClick, map[string]interface{}{"ref": "e1"})

	assert.False(t, res.Success)
	assert.Equal(t, ClassTransient, res.Classification)
	assert.Less(t, time.Since(start), 2*time.Second, "cancel must cut the backoff sleep short")
}

func TestApply_Navigate(t *testing.T) {
	d := testutils.NewMockDriver()
	d.PageTitle = "Login"
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionNavigate, map[string]interface{}{"url": "https://example.com/login"})

	assert.True(t, res.Success)
	assert.Equal(t, "navigated to https://example.com/login (Login)", res.Observation)
}

func TestApply_Type(t *testing.T) {
	d := testutils.NewMockDriver()
	var gotText string
	var gotClear bool
	d.TypeFunc = func(ctx context.Context, ref, text string, clear bool) error {
		gotText, gotClear = text, clear
		return nil
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionType, map[string]interface{}{"ref": "e2", "text": "hello"})

	assert.True(t, res.Success)
	assert.Equal(t, "typed 5 chars into e2", res.Observation)
	assert.Equal(t, "hello", gotText)
	assert.True(t, gotClear, "clear defaults to true")

	res = x.Apply(context.Background(), ActionType, map[string]interface{}{"ref": "e2", "text": "", "clear": false})
	assert.True(t, res.Success)
	assert.False(t, gotClear)
}

func TestApply_WaitCapped(t *testing.T) {
	cfg := testCfg()
	cfg.MaxWait = 20 * time.Millisecond

	d := testutils.NewMockDriver()
	var waited time.Duration
	d.WaitFunc = func(ctx context.Context, dur time.Duration) error {
		waited = dur
		return nil
	}
	x := NewExecutor(cfg, d, nil)

	res := x.Apply(context.Background(), ActionWait, map[string]interface{}{"seconds": 3600.0})

	assert.True(t, res.Success)
	assert.Equal(t, 20*time.Millisecond, waited)
}

func TestApply_Screenshot(t *testing.T) {
	d := testutils.NewMockDriver()
	d.ScreenshotData = []byte{0x89, 0x50, 0x4E, 0x47}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionScreenshot, nil)

	assert.True(t, res.Success)
	assert.Equal(t, d.ScreenshotData, res.Screenshot)
	assert.Contains(t, res.Observation, "4 bytes")
}

func TestApply_ReadText(t *testing.T) {
	d := testutils.NewMockDriver()
	d.BodyText = "Welcome back. Please sign in."
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionReadText, nil)

	assert.True(t, res.Success)
	assert.Equal(t, "Welcome back. Please sign in.", res.Text)
	assert.Contains(t, res.Observation, "29 chars")
}

func TestApply_ReadTextBounded(t *testing.T) {
	cfg := testCfg()
	cfg.MaxTextLen = 10

	d := testutils.NewMockDriver()
	d.BodyText = strings.Repeat("a", 100)
	x := NewExecutor(cfg, d, nil)

	res := x.Apply(context.Background(), ActionReadText, nil)

	assert.True(t, res.Success)
	assert.Len(t, res.Text, 10)
}

func TestApply_History(t *testing.T) {
	d := testutils.NewMockDriver()
	d.URL = "https://example.com/previous"
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionGoBack, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "went back to https://example.com/previous", res.Observation)

	res = x.Apply(context.Background(), ActionGoForward, nil)
	assert.True(t, res.Success)
	assert.Contains(t, res.Observation, "went forward to")
}

func TestApply_TimeoutOverride(t *testing.T) {
	d := testutils.NewMockDriver()
	var deadlineSet bool
	d.ClickFunc = func(ctx context.Context, ref string) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}
	x := NewExecutor(testCfg(), d, nil)

	res := x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1", "timeout": 2.0})

	assert.True(t, res.Success)
	assert.True(t, deadlineSet)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"wrapped deadline", fmt.Errorf("click: %w", context.DeadlineExceeded), ClassTimeout},
		{"not found sentinel", browser.ErrElementNotFound, ClassPermanent},
		{"not visible sentinel", browser.ErrElementNotVisible, ClassPermanent},
		{"detached sentinel", browser.ErrElementDetached, ClassPermanent},
		{"invalid ref sentinel", browser.ErrInvalidRef, ClassPermanent},
		{"driver gone", browser.ErrDriverUnavailable, ClassPermanent},
		{"timeout text", errors.New("operation timed out"), ClassTimeout},
		{"not found text", errors.New("node not found in DOM"), ClassPermanent},
		{"connection reset", errors.New("read: connection reset"), ClassTransient},
		{"temporarily unavailable", errors.New("service temporarily unavailable"), ClassTransient},
		{"unknown", errors.New("something odd"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestKnownAndMutating(t *testing.T) {
	for _, a := range []Action{
		ActionNavigate, ActionClick, ActionType, ActionPress, ActionSelect,
		ActionHover, ActionScroll, ActionWait, ActionScreenshot,
		ActionReadText, ActionGoBack, ActionGoForward, ActionDone,
	} {
		assert.True(t, Known(a), "%s should be known", a)
	}
	assert.False(t, Known(Action("teleport")))

	for _, a := range []Action{ActionWait, ActionScroll, ActionHover, ActionScreenshot, ActionReadText} {
		assert.False(t, IsMutating(a), "%s should not mutate", a)
	}
	for _, a := range []Action{ActionNavigate, ActionClick, ActionType, ActionPress, ActionSelect, ActionGoBack, ActionGoForward} {
		assert.True(t, IsMutating(a), "%s should mutate", a)
	}
}

func TestMetrics(t *testing.T) {
	d := testutils.NewMockDriver()
	d.ClickFunc = func(ctx context.Context, ref string) error {
		if ref == "bad" {
			return browser.ErrElementNotFound
		}
		return nil
	}
	x := NewExecutor(testCfg(), d, nil)

	x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "e1"})
	x.Apply(context.Background(), ActionClick, map[string]interface{}{"ref": "bad"})

	m := x.Metrics()
	assert.Equal(t, int64(2), m.ActionsExecuted)
	assert.Equal(t, int64(1), m.ActionFailures)
	assert.Equal(t, int64(1), m.ByClassification[ClassOK])
	assert.Equal(t, int64(1), m.ByClassification[ClassPermanent])
	assert.Greater(t, m.AvgActionTime, time.Duration(0))
}

func TestClampObservation(t *testing.T) {
	assert.Equal(t, "short", clampObservation("short"))

	long := strings.Repeat("x", 250)
	clamped := clampObservation(long)
	assert.Len(t, []rune(clamped), 203)
	assert.True(t, strings.HasSuffix(clamped, "..."))
}
