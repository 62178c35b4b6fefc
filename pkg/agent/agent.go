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

// Package agent runs the observe-plan-act loop that drives a browser
// toward a natural-language goal. Each iteration snapshots the page,
// asks the planner for the next action, applies it through the executor
// and records the outcome in working memory. The loop exits with one of
// four reasons (done, step_budget, fatal_error, cancelled) and always
// leaves exactly one episode behind.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/executor"
	"github.com/kadirpekel/argus/pkg/llms"
	"github.com/kadirpekel/argus/pkg/memory"
	"github.com/kadirpekel/argus/pkg/observability"
	"github.com/kadirpekel/argus/pkg/snapshot"
)

// maxConsecutiveParseErrors is how many malformed plans in a row the loop
// absorbs before giving up on the provider.
const maxConsecutiveParseErrors = 3

// Agent owns one browser session and processes one goal at a time.
type Agent struct {
	cfg    config.AgentConfig
	driver browser.Driver
	llm    llms.LLMClient

	engine  *snapshot.Engine
	exec    *executor.Executor
	memory  *memory.Manager
	planner Planner

	running atomic.Bool

	cancelMu sync.Mutex
	cancelFn context.CancelFunc

	statsMu     sync.Mutex
	runs        int64
	steps       int64
	llmCalls    int64
	tokens      int64
	parseErrors int64
}

type options struct {
	cfg     *config.Config
	memory  *memory.Manager
	planner Planner
}

// Option customizes agent construction.
type Option func(*options)

// WithConfig supplies the full configuration. The agent consumes its own
// section plus the snapshot, executor and memory sections.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithMemory injects a prebuilt memory manager, typically one with
// persistence and recall already attached.
func WithMemory(m *memory.Manager) Option {
	return func(o *options) { o.memory = m }
}

// WithPlanner replaces the default LLM planner.
func WithPlanner(p Planner) Option {
	return func(o *options) { o.planner = p }
}

type runOptions struct {
	runID    string
	listener func(memory.StepRecord)
}

// RunOption adjusts a single Run without touching agent construction.
type RunOption func(*runOptions)

// WithRunID pins the run identifier instead of generating one, so serving
// surfaces can hand out the ID before the run finishes.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithStepListener registers a callback invoked after every recorded step.
// It runs on the loop goroutine; keep it fast.
func WithStepListener(fn func(memory.StepRecord)) RunOption {
	return func(o *runOptions) { o.listener = fn }
}

// New wires a step loop around the given driver. The LLM client may be nil
// only when WithPlanner supplies an alternative.
func New(driver browser.Driver, llm llms.LLMClient, opts ...Option) (*Agent, error) {
	if driver == nil {
		return nil, fmt.Errorf("browser driver is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.SetDefaults()
	if err := cfg.Agent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	planner := o.planner
	if planner == nil {
		if llm == nil {
			return nil, fmt.Errorf("an LLM client or a planner is required")
		}
		planner = NewLLMPlanner(llm, cfg.Agent.SystemPrompt)
	}

	mem := o.memory
	if mem == nil {
		var err error
		mem, err = memory.NewManager(&cfg.Memory)
		if err != nil {
			return nil, fmt.Errorf("memory manager: %w", err)
		}
	}

	engine := snapshot.NewEngine(&cfg.Snapshot, driver)

	return &Agent{
		cfg:     cfg.Agent,
		driver:  driver,
		llm:     llm,
		engine:  engine,
		exec:    executor.NewExecutor(&cfg.Executor, driver, engine),
		memory:  mem,
		planner: planner,
	}, nil
}

// runState is the mutable bookkeeping for one run.
type runState struct {
	step     int
	reason   Reason
	success  bool
	final    string
	listener func(memory.StepRecord)

	consecutiveParse     int
	consecutivePermanent int

	tools []string
	seen  map[string]bool

	llmCalls       int
	tokens         int
	parseErrors    int
	actionFailures int
	replans        int
}

func (st *runState) noteTool(name string) {
	if st.seen == nil {
		st.seen = make(map[string]bool)
	}
	if !st.seen[name] {
		st.seen[name] = true
		st.tools = append(st.tools, name)
	}
}

// Run drives one goal to completion. Validation problems (empty or oversized
// goal, a run already in flight) return an error; everything that happens
// inside the loop lands in the Result instead.
func (a *Agent) Run(ctx context.Context, goal string, opts ...RunOption) (*Result, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrGoalEmpty
	}
	if a.cfg.MaxGoalLen > 0 && len(goal) > a.cfg.MaxGoalLen {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrGoalTooLong, len(goal), a.cfg.MaxGoalLen)
	}
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}
	defer a.running.Store(false)

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	runID := ro.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.setCancel(cancel)
	defer a.setCancel(nil)

	ctx, span := observability.GetTracer("argus.agent").Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(attribute.String(observability.AttrRunID, runID)),
	)
	defer span.End()

	log := slog.With("run_id", runID)
	log.Info("Run started",
		"goal", goal,
		"planner", a.planner.Name(),
		"max_steps", a.cfg.MaxSteps,
	)

	// Working memory is per-run scratch; persistent tiers survive.
	a.memory.ResetWorking()

	start := time.Now()
	st := &runState{listener: ro.listener}
	a.loop(ctx, log, goal, st)
	duration := time.Since(start)

	// Exactly one episode per run, whatever the exit path.
	a.memory.SaveEpisode(goal, st.final, st.success, duration, st.tools, st.step)

	result := &Result{
		RunID:            runID,
		Goal:             goal,
		Success:          st.success,
		Steps:            st.step,
		Duration:         duration,
		FinalObservation: st.final,
		Reason:           st.reason,
		Metrics: RunMetrics{
			LLMCalls:       st.llmCalls,
			TokensUsed:     st.tokens,
			ParseErrors:    st.parseErrors,
			ActionFailures: st.actionFailures,
			Replans:        st.replans,
		},
	}

	span.SetAttributes(
		attribute.String("run.reason", string(result.Reason)),
		attribute.Int("run.steps", result.Steps),
		attribute.Bool("run.success", result.Success),
	)
	if result.Success {
		span.SetStatus(codes.Ok, string(result.Reason))
	} else {
		span.SetStatus(codes.Error, result.FinalObservation)
	}

	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordRun(ctx, string(result.Reason), duration)
	}

	a.statsMu.Lock()
	a.runs++
	a.steps += int64(st.step)
	a.llmCalls += int64(st.llmCalls)
	a.tokens += int64(st.tokens)
	a.parseErrors += int64(st.parseErrors)
	a.statsMu.Unlock()

	log.Info("Run finished",
		"reason", result.Reason,
		"success", result.Success,
		"steps", result.Steps,
		"duration", duration,
	)
	return result, nil
}

// loop iterates until a terminal reason is set. Cancellation and the step
// budget are checked at iteration boundaries, so an in-flight step always
// finishes and records its outcome first.
func (a *Agent) loop(ctx context.Context, log *slog.Logger, goal string, st *runState) {
	for {
		if ctx.Err() != nil {
			st.reason = ReasonCancelled
			st.final = "run cancelled"
			return
		}
		if st.step >= a.cfg.MaxSteps {
			st.reason = ReasonStepBudget
			if st.final == "" {
				st.final = fmt.Sprintf("step budget of %d exhausted", a.cfg.MaxSteps)
			}
			return
		}
		st.step++

		a.step(ctx, log, goal, st)
		if st.reason != "" {
			return
		}
	}
}

// step performs one observe-plan-act iteration. Every call records exactly
// one step in working memory; snapshot and planning failures record under
// the synthetic actions "snapshot" and "plan".
func (a *Agent) step(ctx context.Context, log *slog.Logger, goal string, st *runState) {
	stepStart := time.Now()

	ctx, span := observability.GetTracer("argus.agent").Start(ctx, observability.SpanAgentStep,
		trace.WithAttributes(attribute.Int(observability.AttrStepIndex, st.step)),
	)
	defer span.End()

	record := func(action string, args map[string]interface{}, observation string, success bool, screenshot []byte) {
		rec := memory.StepRecord{
			StepNumber:  st.step,
			Action:      action,
			Args:        args,
			Observation: observation,
			Success:     success,
			Duration:    time.Since(stepStart),
			Timestamp:   stepStart,
			Screenshot:  screenshot,
		}
		a.memory.AddStep(rec)
		if st.listener != nil {
			st.listener(rec)
		}
		st.final = observation

		outcome := "failure"
		if success {
			outcome = "success"
			span.SetStatus(codes.Ok, action)
		} else {
			span.SetStatus(codes.Error, observation)
		}
		if m := observability.GetGlobalMetrics(); m != nil {
			m.RecordStep(ctx, outcome, time.Since(stepStart))
		}
	}

	snapRes, err := a.engine.Get(ctx, false, false)
	if err != nil {
		record("snapshot", nil, err.Error(), false, nil)
		if errors.Is(err, browser.ErrDriverUnavailable) {
			log.Error("Driver unavailable", "step", st.step, "error", err)
			st.reason = ReasonFatalError
			return
		}
		log.Warn("Snapshot failed", "step", st.step, "error", err)
		a.notePermanent(st)
		return
	}
	snap := snapRes.Snapshot
	span.SetAttributes(attribute.String(observability.AttrPageURL, snap.URL))

	memCtx := a.memory.GetEnrichedContext(ctx, goal, 0)

	plan, tokens, err := a.planner.NextPlan(ctx, PlanRequest{
		Goal:     goal,
		Step:     st.step,
		Snapshot: snap,
		Memory:   memCtx,
	})
	st.llmCalls++
	st.tokens += tokens
	if err != nil {
		if errors.Is(err, ErrPlanParse) {
			st.parseErrors++
			st.consecutiveParse++
			record("plan", nil, "llm_parse_error", false, nil)
			log.Warn("Plan parse failed", "step", st.step, "error", err)
			if st.consecutiveParse >= maxConsecutiveParseErrors {
				st.reason = ReasonFatalError
			}
			return
		}
		record("plan", nil, err.Error(), false, nil)
		log.Warn("Planning failed", "step", st.step, "error", err)
		a.notePermanent(st)
		return
	}
	st.consecutiveParse = 0

	action := executor.Action(plan.Action)
	if plan.Done || action == executor.ActionDone {
		record(string(executor.ActionDone), plan.Args, plan.FinalMessage(), true, nil)
		log.Info("Goal reported complete", "step", st.step, "message", st.final)
		st.success = true
		st.reason = ReasonDone
		return
	}

	if !executor.Known(action) {
		record(plan.Action, plan.Args, fmt.Sprintf("unknown_action: %s", plan.Action), false, nil)
		log.Warn("Planner produced unknown action", "step", st.step, "action", plan.Action)
		a.notePermanent(st)
		return
	}

	res := a.exec.Apply(ctx, action, plan.Args)
	if !res.Success && res.Classification == executor.ClassPermanent && ctx.Err() == nil {
		// Permanent failures usually mean stale refs. Rebind against a
		// fresh snapshot and retry the same plan once.
		if _, snapErr := a.engine.Get(ctx, true, false); snapErr == nil {
			st.replans++
			log.Debug("Retrying against fresh snapshot", "step", st.step, "action", action)
			res = a.exec.Apply(ctx, action, plan.Args)
		}
	}

	record(string(action), plan.Args, res.Observation, res.Success, res.Screenshot)
	st.noteTool(string(action))

	if res.Success {
		st.consecutivePermanent = 0
		return
	}
	st.actionFailures++
	if res.Classification == executor.ClassPermanent {
		a.notePermanent(st)
		return
	}
	st.consecutivePermanent = 0
}

// notePermanent counts a permanent failure toward the consecutive limit and
// flips the run fatal once the limit is reached.
func (a *Agent) notePermanent(st *runState) {
	st.consecutivePermanent++
	if st.consecutivePermanent >= a.cfg.MaxPermanentFailures {
		st.reason = ReasonFatalError
	}
}

// Cancel stops the in-flight run at its next iteration boundary. With no
// run active it is a no-op.
func (a *Agent) Cancel() {
	a.cancelMu.Lock()
	defer a.cancelMu.Unlock()
	if a.cancelFn != nil {
		a.cancelFn()
	}
}

func (a *Agent) setCancel(fn context.CancelFunc) {
	a.cancelMu.Lock()
	a.cancelFn = fn
	a.cancelMu.Unlock()
}

// Running reports whether a goal is currently being processed.
func (a *Agent) Running() bool {
	return a.running.Load()
}

// Memory exposes the manager so serving surfaces can search episodes and
// semantic entries alongside the loop.
func (a *Agent) Memory() *memory.Manager {
	return a.memory
}

// Driver exposes the underlying browser driver, mainly for health probes.
func (a *Agent) Driver() browser.Driver {
	return a.driver
}

// Snapshots exposes the snapshot engine shared with the executor.
func (a *Agent) Snapshots() *snapshot.Engine {
	return a.engine
}

// Executor exposes the action executor for direct tool surfaces.
func (a *Agent) Executor() *executor.Executor {
	return a.exec
}

// Metrics returns cumulative counters across runs plus the component views.
func (a *Agent) Metrics() Metrics {
	a.statsMu.Lock()
	m := Metrics{
		Runs:        a.runs,
		Steps:       a.steps,
		LLMCalls:    a.llmCalls,
		TokensUsed:  a.tokens,
		ParseErrors: a.parseErrors,
	}
	a.statsMu.Unlock()

	m.Snapshot = a.engine.Metrics()
	m.Executor = a.exec.Metrics()
	m.Memory = a.memory.Stats()
	return m
}
