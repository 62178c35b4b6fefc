package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/argus/pkg/agent"
	"github.com/kadirpekel/argus/pkg/memory"
)

var (
	// ErrRunnerBusy means all run slots are occupied.
	ErrRunnerBusy = errors.New("run capacity exhausted")

	// ErrRunnerClosed means the runner is draining and takes no new runs.
	ErrRunnerClosed = errors.New("runner shutting down")

	// ErrRunNotFound means no run exists under the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinished means the run already reached a terminal state.
	ErrRunFinished = errors.New("run already finished")
)

// AgentFactory builds a fresh agent for one run; each run owns its own
// browser session. maxSteps overrides the configured step budget when
// positive. The returned release func tears the session down.
type AgentFactory func(ctx context.Context, maxSteps int) (*agent.Agent, func(), error)

// RunState is the lifecycle phase of a submitted run.
type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateCancelled RunState = "cancelled"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	}
	return false
}

// Event is one frame of a run's step stream. Type is "step" while the run
// progresses, then exactly one "result" or "error" frame closes the stream.
type Event struct {
	Type   string             `json:"type"`
	RunID  string             `json:"run_id"`
	Step   *memory.StepRecord `json:"step,omitempty"`
	Result *agent.Result      `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

const (
	EventStep   = "step"
	EventResult = "result"
	EventError  = "error"
)

// RunView is the JSON projection of a run for API responses.
type RunView struct {
	RunID      string        `json:"run_id"`
	Goal       string        `json:"goal"`
	State      RunState      `json:"state"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
	Result     *agent.Result `json:"result,omitempty"`
}

// Run tracks one submitted goal from acceptance to its terminal state.
type Run struct {
	ID        string
	Goal      string
	CreatedAt time.Time

	maxSteps int

	mu              sync.RWMutex
	state           RunState
	startedAt       time.Time
	finishedAt      time.Time
	result          *agent.Result
	errMsg          string
	cancel          context.CancelFunc
	cancelRequested bool

	broker *broker
	done   chan struct{}
}

func newRun(goal string, maxSteps int) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Goal:      goal,
		CreatedAt: time.Now(),
		maxSteps:  maxSteps,
		state:     RunStatePending,
		broker:    newBroker(),
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (r *Run) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the agent's result, nil until the run finished.
func (r *Run) Result() *agent.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// View snapshots the run for an API response.
func (r *Run) View() RunView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := RunView{
		RunID:     r.ID,
		Goal:      r.Goal,
		State:     r.state,
		CreatedAt: r.CreatedAt,
		Error:     r.errMsg,
		Result:    r.result,
	}
	if !r.startedAt.IsZero() {
		t := r.startedAt
		v.StartedAt = &t
	}
	if !r.finishedAt.IsZero() {
		t := r.finishedAt
		v.FinishedAt = &t
	}
	return v
}

// Subscribe returns the events recorded so far plus a live channel that is
// closed once the run finishes. The returned func detaches the subscriber.
func (r *Run) Subscribe() ([]Event, <-chan Event, func()) {
	return r.broker.subscribe()
}

func (r *Run) setRunning(cancel context.CancelFunc) {
	r.mu.Lock()
	r.state = RunStateRunning
	r.startedAt = time.Now()
	r.cancel = cancel
	requested := r.cancelRequested
	r.mu.Unlock()

	// A cancel that arrived while the run was still pending fires now.
	if requested {
		cancel()
	}
}

// requestCancel marks the run cancelled and fires its context cancellation.
// Returns false when the run already finished.
func (r *Run) requestCancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return false
	}
	r.cancelRequested = true
	if r.cancel != nil {
		r.cancel()
	}
	return true
}

func (r *Run) finish(res *agent.Result) {
	r.mu.Lock()
	r.result = res
	r.finishedAt = time.Now()
	switch {
	case res.Reason == agent.ReasonCancelled:
		r.state = RunStateCancelled
	case res.Success:
		r.state = RunStateCompleted
	default:
		r.state = RunStateFailed
	}
	r.mu.Unlock()

	r.broker.publish(Event{Type: EventResult, RunID: r.ID, Result: res})
	r.broker.close()
	close(r.done)
}

func (r *Run) fail(msg string) {
	r.mu.Lock()
	r.errMsg = msg
	r.finishedAt = time.Now()
	r.state = RunStateFailed
	r.mu.Unlock()

	r.broker.publish(Event{Type: EventError, RunID: r.ID, Error: msg})
	r.broker.close()
	close(r.done)
}

// Runner accepts goals and executes each on its own agent, bounded to a
// fixed number of concurrent runs. Finished runs stay queryable until the
// process exits.
type Runner struct {
	factory  AgentFactory
	group    *errgroup.Group
	baseCtx  context.Context
	stopBase context.CancelFunc
	draining atomic.Bool

	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
}

// NewRunner builds a runner executing at most limit runs in parallel.
func NewRunner(factory AgentFactory, limit int) *Runner {
	if limit <= 0 {
		limit = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Runner{
		factory:  factory,
		group:    g,
		baseCtx:  baseCtx,
		stopBase: cancel,
		runs:     make(map[string]*Run),
	}
}

// Submit accepts a goal and starts it immediately on a free slot. It never
// queues: with all slots busy it returns ErrRunnerBusy so the caller can
// surface back-pressure.
func (rn *Runner) Submit(goal string, maxSteps int) (*Run, error) {
	if rn.draining.Load() {
		return nil, ErrRunnerClosed
	}

	run := newRun(goal, maxSteps)
	rn.mu.Lock()
	rn.runs[run.ID] = run
	rn.order = append(rn.order, run.ID)
	rn.mu.Unlock()

	ok := rn.group.TryGo(func() error {
		rn.execute(run)
		return nil
	})
	if !ok {
		rn.mu.Lock()
		delete(rn.runs, run.ID)
		for i := len(rn.order) - 1; i >= 0; i-- {
			if rn.order[i] == run.ID {
				rn.order = append(rn.order[:i], rn.order[i+1:]...)
				break
			}
		}
		rn.mu.Unlock()
		return nil, ErrRunnerBusy
	}
	return run, nil
}

func (rn *Runner) execute(run *Run) {
	runCtx, cancel := context.WithCancel(rn.baseCtx)
	defer cancel()
	run.setRunning(cancel)

	log := slog.With("run_id", run.ID)

	ag, release, err := rn.factory(runCtx, run.maxSteps)
	if err != nil {
		log.Error("Agent construction failed", "error", err)
		run.fail(fmt.Sprintf("agent construction: %v", err))
		return
	}
	defer release()

	res, err := ag.Run(runCtx, run.Goal,
		agent.WithRunID(run.ID),
		agent.WithStepListener(func(rec memory.StepRecord) {
			run.broker.publish(Event{Type: EventStep, RunID: run.ID, Step: &rec})
		}),
	)
	if err != nil {
		run.fail(err.Error())
		return
	}
	run.finish(res)
}

// Get returns the run under id, nil when unknown.
func (rn *Runner) Get(id string) *Run {
	rn.mu.RLock()
	defer rn.mu.RUnlock()
	return rn.runs[id]
}

// List returns all known runs, most recent first.
func (rn *Runner) List() []*Run {
	rn.mu.RLock()
	defer rn.mu.RUnlock()

	out := make([]*Run, 0, len(rn.order))
	for i := len(rn.order) - 1; i >= 0; i-- {
		out = append(out, rn.runs[rn.order[i]])
	}
	return out
}

// Cancel requests cancellation of a run. The run finishes at its next
// iteration boundary and keeps its recorded steps.
func (rn *Runner) Cancel(id string) (*Run, error) {
	run := rn.Get(id)
	if run == nil {
		return nil, ErrRunNotFound
	}
	if !run.requestCancel() {
		return run, ErrRunFinished
	}
	return run, nil
}

// Draining reports whether the runner stopped accepting new runs.
func (rn *Runner) Draining() bool {
	return rn.draining.Load()
}

// Shutdown stops accepting runs, cancels in-flight ones and waits for them
// to record their terminal state, up to ctx's deadline.
func (rn *Runner) Shutdown(ctx context.Context) error {
	rn.draining.Store(true)
	rn.stopBase()

	waited := make(chan struct{})
	go func() {
		_ = rn.group.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown: %w", ctx.Err())
	}
}

// broker fans one run's events out to any number of subscribers while
// keeping a replay buffer for late joiners.
type broker struct {
	mu     sync.Mutex
	events []Event
	subs   map[chan Event]struct{}
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[chan Event]struct{})}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.events = append(b.events, ev)
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// A stalled subscriber must not hold up the run; it still
			// has the replay buffer on reconnect.
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

func (b *broker) subscribe() ([]Event, <-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	past := append([]Event(nil), b.events...)
	if b.closed {
		ch := make(chan Event)
		close(ch)
		return past, ch, func() {}
	}

	ch := make(chan Event, 64)
	b.subs[ch] = struct{}{}
	detach := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return past, ch, detach
}
