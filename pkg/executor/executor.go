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

// Package executor turns (action, args) pairs into bounded, classified
// driver calls: arguments are validated before anything reaches the
// browser, a cached health gate fronts every action, transient failures
// are retried with exponential backoff, and the final outcome is always
// one of ok, transient, permanent or timeout. Apply never returns an
// error; the classification is the whole story.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/observability"
)

// Invalidator drops cached page state after a successful mutating action.
// Satisfied by *snapshot.Engine.
type Invalidator interface {
	Invalidate()
}

// Executor applies actions to a browser driver. One action at a time; the
// step loop is the only caller, but Metrics may be read concurrently.
type Executor struct {
	cfg    config.ExecutorConfig
	driver browser.Driver
	inval  Invalidator

	mu       sync.Mutex
	healthy  bool
	healthAt time.Time

	actionsExecuted int64
	actionFailures  int64
	actionRetries   int64
	totalTime       time.Duration
	byClass         map[Classification]int64
}

var urlPattern = regexp.MustCompile(`^https?://`)

// NewExecutor creates an executor over a driver. invalidator may be nil
// when no snapshot cache is in play (tests, one-shot tools).
func NewExecutor(cfg *config.ExecutorConfig, driver browser.Driver, invalidator Invalidator) *Executor {
	resolved := config.ExecutorConfig{}
	if cfg != nil {
		resolved = *cfg
	}

	return &Executor{
		cfg:     resolved,
		driver:  driver,
		inval:   invalidator,
		byClass: make(map[Classification]int64),
	}
}

// callResult is what one successful driver dispatch yields.
type callResult struct {
	observation string
	text        string
	screenshot  []byte
}

type callFunc func(ctx context.Context) (callResult, error)

// Apply runs one action against the browser and classifies the outcome.
// It never returns an error; validation failures, unhealthy browsers and
// exhausted retries all land in the result.
func (x *Executor) Apply(ctx context.Context, action Action, args map[string]interface{}) ActionResult {
	start := time.Now()

	ctx, span := observability.GetTracer("argus.executor").Start(ctx, observability.SpanActionExecute,
		trace.WithAttributes(attribute.String(observability.AttrActionName, string(action))),
	)
	defer span.End()

	result := x.run(ctx, action, args)

	duration := time.Since(start)
	span.SetAttributes(
		attribute.String(observability.AttrActionStatus, string(result.Classification)),
		attribute.Int("action.retries", result.RetriesUsed),
	)
	if result.Success {
		span.SetStatus(codes.Ok, "success")
	} else {
		span.SetStatus(codes.Error, result.Observation)
	}

	x.mu.Lock()
	x.actionsExecuted++
	x.totalTime += duration
	x.actionRetries += int64(result.RetriesUsed)
	if !result.Success {
		x.actionFailures++
	}
	x.byClass[result.Classification]++
	x.mu.Unlock()

	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordAction(ctx, string(action), string(result.Classification), result.RetriesUsed, duration)
	}
	slog.Debug("Action applied",
		"action", action,
		"classification", result.Classification,
		"retries", result.RetriesUsed,
		"duration", duration,
	)

	return result
}

func (x *Executor) run(ctx context.Context, action Action, args map[string]interface{}) ActionResult {
	call, timeout, err := x.buildCall(action, args)
	if err != nil {
		return ActionResult{Observation: err.Error(), Classification: ClassPermanent}
	}

	if override, ok, err := timeoutArg(args); err != nil {
		return ActionResult{Observation: err.Error(), Classification: ClassPermanent}
	} else if ok {
		timeout = override
	}

	if !x.healthGate(ctx) {
		return ActionResult{Observation: "browser unhealthy", Classification: ClassPermanent}
	}

	var lastErr error
	lastClass := ClassTransient
	retries := 0

	for attempt := 0; attempt <= x.cfg.MaxRetries; attempt++ {
		retries = attempt

		out, err := x.invoke(ctx, call, timeout)
		if err == nil {
			if IsMutating(action) && x.inval != nil {
				x.inval.Invalidate()
			}
			return ActionResult{
				Success:        true,
				Observation:    clampObservation(out.observation),
				RetriesUsed:    retries,
				Classification: ClassOK,
				Text:           out.text,
				Screenshot:     out.screenshot,
			}
		}

		lastErr = err
		lastClass = classify(err)
		if lastClass == ClassPermanent {
			break
		}
		if attempt < x.cfg.MaxRetries {
			if sleepErr := x.sleepBackoff(ctx, attempt); sleepErr != nil {
				break
			}
		}
	}

	return ActionResult{
		Observation:    lastErr.Error(),
		RetriesUsed:    retries,
		Classification: lastClass,
	}
}

// invoke bounds one driver dispatch with the per-action timeout.
func (x *Executor) invoke(ctx context.Context, call callFunc, timeout time.Duration) (callResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return call(ctx)
}

// healthGate reports whether the browser is usable. Healthy verdicts are
// cached for HealthCacheTTL; a stale or unhealthy cache always triggers a
// fresh probe, so one failed probe cannot poison a full TTL window.
func (x *Executor) healthGate(ctx context.Context) bool {
	x.mu.Lock()
	fresh := time.Since(x.healthAt) < x.cfg.HealthCacheTTL
	healthy := x.healthy
	x.mu.Unlock()

	if fresh && healthy {
		return true
	}

	probeCtx := ctx
	if x.cfg.ActionTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, x.cfg.ActionTimeout)
		defer cancel()
	}

	err := x.driver.Health(probeCtx)

	x.mu.Lock()
	x.healthy = err == nil
	x.healthAt = time.Now()
	x.mu.Unlock()

	if err != nil {
		slog.Warn("Browser health probe failed", "error", err)
	}
	return err == nil
}

// sleepBackoff sleeps RetryBaseDelay × 2^attempt × (1 + jitter) with
// jitter uniform in [0, 0.3]. Cancellable; an error means ctx ended.
func (x *Executor) sleepBackoff(ctx context.Context, attempt int) error {
	base := x.cfg.RetryBaseDelay
	if base <= 0 {
		return nil
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)) * (1 + rand.Float64()*0.3))

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify maps a driver error to a retry verdict. Sentinels first, error
// text second. Unrecognized errors count as transient so a flaky driver
// still gets its retries.
func classify(err error) Classification {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, browser.ErrElementNotFound),
		errors.Is(err, browser.ErrElementNotVisible),
		errors.Is(err, browser.ErrElementDetached),
		errors.Is(err, browser.ErrInvalidRef),
		errors.Is(err, browser.ErrDriverUnavailable),
		errors.Is(err, browser.ErrUnhealthy):
		return ClassPermanent
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return ClassTimeout
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "not visible"),
		strings.Contains(msg, "detached"),
		strings.Contains(msg, "invalid selector"),
		strings.Contains(msg, "invalid ref"):
		return ClassPermanent
	}

	return ClassTransient
}

// buildCall validates args and binds the driver dispatch for one action.
// A returned error means the input never reaches the browser.
func (x *Executor) buildCall(action Action, args map[string]interface{}) (callFunc, time.Duration, error) {
	switch action {
	case ActionNavigate:
		url, err := requiredString(args, "url")
		if err != nil {
			return nil, 0, err
		}
		if !urlPattern.MatchString(url) {
			return nil, 0, fmt.Errorf("url must start with http:// or https://")
		}
		if x.cfg.MaxURLLen > 0 && len(url) > x.cfg.MaxURLLen {
			return nil, 0, fmt.Errorf("url exceeds %d chars", x.cfg.MaxURLLen)
		}
		waitUntil, err := optionalString(args, "wait_until", browser.WaitLoad)
		if err != nil {
			return nil, 0, err
		}
		return func(ctx context.Context) (callResult, error) {
			info, err := x.driver.Navigate(ctx, url, waitUntil)
			if err != nil {
				return callResult{}, err
			}
			return callResult{observation: fmt.Sprintf("navigated to %s (%s)", info.URL, info.Title)}, nil
		}, x.cfg.NavigateTimeout, nil

	case ActionClick:
		ref, err := requiredString(args, "ref")
		if err != nil {
			return nil, 0, err
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Click(ctx, ref); err != nil {
				return callResult{}, err
			}
			return callResult{observation: "clicked " + ref}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionType:
		ref, err := requiredString(args, "ref")
		if err != nil {
			return nil, 0, err
		}
		text, err := textArg(args)
		if err != nil {
			return nil, 0, err
		}
		if x.cfg.MaxTextLen > 0 && len(text) > x.cfg.MaxTextLen {
			return nil, 0, fmt.Errorf("text exceeds %d chars", x.cfg.MaxTextLen)
		}
		clear, err := optionalBool(args, "clear", true)
		if err != nil {
			return nil, 0, err
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Type(ctx, ref, text, clear); err != nil {
				return callResult{}, err
			}
			return callResult{observation: fmt.Sprintf("typed %d chars into %s", utf8.RuneCountInString(text), ref)}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionPress:
		key, err := requiredString(args, "key")
		if err != nil {
			return nil, 0, err
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Press(ctx, key); err != nil {
				return callResult{}, err
			}
			return callResult{observation: "pressed " + key}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionSelect:
		ref, err := requiredString(args, "ref")
		if err != nil {
			return nil, 0, err
		}
		value, err := requiredString(args, "value")
		if err != nil {
			return nil, 0, err
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Select(ctx, ref, value); err != nil {
				return callResult{}, err
			}
			return callResult{observation: fmt.Sprintf("selected %q in %s", value, ref)}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionHover:
		ref, err := requiredString(args, "ref")
		if err != nil {
			return nil, 0, err
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Hover(ctx, ref); err != nil {
				return callResult{}, err
			}
			return callResult{observation: "hovered over " + ref}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionScroll:
		direction, err := optionalString(args, "direction", "down")
		if err != nil {
			return nil, 0, err
		}
		switch direction {
		case "up", "down", "left", "right":
		default:
			return nil, 0, fmt.Errorf("scroll direction must be up, down, left or right")
		}
		amount, err := optionalInt(args, "amount", 0)
		if err != nil {
			return nil, 0, err
		}
		if amount < 0 {
			return nil, 0, fmt.Errorf("scroll amount cannot be negative")
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Scroll(ctx, direction, amount); err != nil {
				return callResult{}, err
			}
			if amount > 0 {
				return callResult{observation: fmt.Sprintf("scrolled %s by %d", direction, amount)}, nil
			}
			return callResult{observation: "scrolled " + direction}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionWait:
		secs, err := requiredNumber(args, "seconds")
		if err != nil {
			return nil, 0, err
		}
		if secs <= 0 {
			return nil, 0, fmt.Errorf("wait seconds must be positive")
		}
		d := time.Duration(secs * float64(time.Second))
		if x.cfg.MaxWait > 0 && d > x.cfg.MaxWait {
			d = x.cfg.MaxWait
		}
		return func(ctx context.Context) (callResult, error) {
			if err := x.driver.Wait(ctx, d); err != nil {
				return callResult{}, err
			}
			return callResult{observation: fmt.Sprintf("waited %s", d)}, nil
		}, d + time.Second, nil

	case ActionScreenshot:
		return func(ctx context.Context) (callResult, error) {
			data, err := x.driver.Screenshot(ctx)
			if err != nil {
				return callResult{}, err
			}
			return callResult{
				observation: fmt.Sprintf("captured screenshot (%d bytes)", len(data)),
				screenshot:  data,
			}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionReadText:
		// The driver reads text at page granularity; a ref is accepted for
		// vocabulary compatibility but does not narrow the read.
		if v, ok := args["ref"]; ok {
			if _, isString := v.(string); !isString {
				return nil, 0, fmt.Errorf("ref must be a string")
			}
		}
		return func(ctx context.Context) (callResult, error) {
			text, err := x.driver.Text(ctx)
			if err != nil {
				return callResult{}, err
			}
			if x.cfg.MaxTextLen > 0 && len(text) > x.cfg.MaxTextLen {
				text = text[:x.cfg.MaxTextLen]
			}
			return callResult{
				observation: fmt.Sprintf("read %d chars of page text", utf8.RuneCountInString(text)),
				text:        text,
			}, nil
		}, x.cfg.ActionTimeout, nil

	case ActionGoBack:
		return func(ctx context.Context) (callResult, error) {
			info, err := x.driver.Back(ctx)
			if err != nil {
				return callResult{}, err
			}
			return callResult{observation: "went back to " + info.URL}, nil
		}, x.cfg.NavigateTimeout, nil

	case ActionGoForward:
		return func(ctx context.Context) (callResult, error) {
			info, err := x.driver.Forward(ctx)
			if err != nil {
				return callResult{}, err
			}
			return callResult{observation: "went forward to " + info.URL}, nil
		}, x.cfg.NavigateTimeout, nil

	case ActionDone:
		return nil, 0, fmt.Errorf("done is terminal and has no browser effect")

	default:
		return nil, 0, fmt.Errorf("unknown action: %s", action)
	}
}

// Metrics returns a copy of the executor counters.
func (x *Executor) Metrics() Metrics {
	x.mu.Lock()
	defer x.mu.Unlock()

	byClass := make(map[Classification]int64, len(x.byClass))
	for k, v := range x.byClass {
		byClass[k] = v
	}

	m := Metrics{
		ActionsExecuted:  x.actionsExecuted,
		ActionFailures:   x.actionFailures,
		ActionRetries:    x.actionRetries,
		ByClassification: byClass,
	}
	if x.actionsExecuted > 0 {
		m.AvgActionTime = x.totalTime / time.Duration(x.actionsExecuted)
	}
	return m
}

const maxObservation = 200

// clampObservation bounds success messages; error text passes through
// untouched so nothing diagnostic is lost.
func clampObservation(s string) string {
	if utf8.RuneCountInString(s) <= maxObservation {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxObservation]) + "..."
}
