package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/agent"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/llms"
	"github.com/kadirpekel/argus/pkg/testutils"
)

const (
	clickPlan = `{"action": "click", "args": {"ref": "e1"}, "rationale": "open the first link", "done": false}`
	donePlan  = `{"action": "done", "args": {"final_message": "found it"}, "rationale": "all set", "done": true}`
)

// mockFactory builds a fresh mock-backed agent per run; newLLM is invoked
// once per run so tests can hand out distinct scripted planners.
func mockFactory(newLLM func() llms.LLMClient) AgentFactory {
	return func(ctx context.Context, maxSteps int) (*agent.Agent, func(), error) {
		cfg := &config.Config{}
		cfg.SetDefaults()
		cfg.Executor.RetryBaseDelay = time.Millisecond
		if maxSteps > 0 {
			cfg.Agent.MaxSteps = maxSteps
		}
		ag, err := agent.New(testutils.NewMockDriver(), newLLM(), agent.WithConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		return ag, func() {}, nil
	}
}

func doneFactory() AgentFactory {
	return mockFactory(func() llms.LLMClient { return testutils.NewMockLLM() })
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

// drain collects the full event stream of a run, blocking until it closes.
func drain(run *Run) []Event {
	past, live, detach := run.Subscribe()
	defer detach()

	events := past
	for ev := range live {
		events = append(events, ev)
	}
	return events
}

func TestRunner_RunCompletesAndStaysQueryable(t *testing.T) {
	rn := NewRunner(doneFactory(), 2)

	run, err := rn.Submit("check the homepage", 0)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.NotEmpty(t, run.ID)

	waitDone(t, run)

	assert.Equal(t, RunStateCompleted, run.State())
	res := run.Result()
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, run.ID, res.RunID)

	view := run.View()
	assert.Equal(t, run.ID, view.RunID)
	assert.Equal(t, "check the homepage", view.Goal)
	require.NotNil(t, view.StartedAt)
	require.NotNil(t, view.FinishedAt)
	assert.Empty(t, view.Error)

	assert.Same(t, run, rn.Get(run.ID))
	require.Len(t, rn.List(), 1)
}

func TestRunner_ListIsMostRecentFirst(t *testing.T) {
	rn := NewRunner(doneFactory(), 2)

	first, err := rn.Submit("first goal", 0)
	require.NoError(t, err)
	second, err := rn.Submit("second goal", 0)
	require.NoError(t, err)

	runs := rn.List()
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	waitDone(t, first)
	waitDone(t, second)
}

func TestRunner_EventsCarryStepsThenResult(t *testing.T) {
	rn := NewRunner(mockFactory(func() llms.LLMClient {
		return testutils.NewMockLLMWithPlans(clickPlan, donePlan)
	}), 1)

	run, err := rn.Submit("press the button", 0)
	require.NoError(t, err)

	events := drain(run)
	require.Len(t, events, 3)

	for _, ev := range events[:2] {
		assert.Equal(t, EventStep, ev.Type)
		assert.Equal(t, run.ID, ev.RunID)
		require.NotNil(t, ev.Step)
	}
	assert.Equal(t, "click", events[0].Step.Action)
	assert.Equal(t, "done", events[1].Step.Action)

	final := events[2]
	assert.Equal(t, EventResult, final.Type)
	require.NotNil(t, final.Result)
	assert.Equal(t, 2, final.Result.Steps)
	assert.Equal(t, "found it", final.Result.FinalObservation)
}

func TestRunner_LateSubscriberGetsFullReplay(t *testing.T) {
	rn := NewRunner(doneFactory(), 1)

	run, err := rn.Submit("quick goal", 0)
	require.NoError(t, err)
	waitDone(t, run)

	events := drain(run)
	require.NotEmpty(t, events)
	assert.Equal(t, EventResult, events[len(events)-1].Type)
}

func TestRunner_BusyWhenAllSlotsTaken(t *testing.T) {
	release := make(chan struct{})
	blocking := func() llms.LLMClient {
		m := testutils.NewMockLLM()
		m.CompleteFunc = func(ctx context.Context, _ []llms.Message, _ *llms.StructuredOutput) (string, int, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return "", 0, ctx.Err()
			}
			return donePlan, 10, nil
		}
		return m
	}

	rn := NewRunner(mockFactory(blocking), 1)

	first, err := rn.Submit("slow goal", 0)
	require.NoError(t, err)

	_, err = rn.Submit("rejected goal", 0)
	assert.ErrorIs(t, err, ErrRunnerBusy)
	require.Len(t, rn.List(), 1, "rejected run must not linger")

	close(release)
	waitDone(t, first)
	assert.Equal(t, RunStateCompleted, first.State())

	// The slot frees once the worker goroutine returns, shortly after the
	// run's terminal event.
	var again *Run
	require.Eventually(t, func() bool {
		r, err := rn.Submit("after release", 0)
		if err != nil {
			return false
		}
		again = r
		return true
	}, 2*time.Second, 10*time.Millisecond)
	waitDone(t, again)
}

func TestRunner_CancelMidRun(t *testing.T) {
	rn := NewRunner(mockFactory(func() llms.LLMClient {
		return testutils.NewMockLLMWithPlans(clickPlan)
	}), 1)

	run, err := rn.Submit("never finishes", 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return run.State() == RunStateRunning
	}, 2*time.Second, 5*time.Millisecond)

	_, err = rn.Cancel(run.ID)
	require.NoError(t, err)

	waitDone(t, run)
	assert.Equal(t, RunStateCancelled, run.State())
	require.NotNil(t, run.Result())
	assert.Equal(t, agent.ReasonCancelled, run.Result().Reason)

	_, err = rn.Cancel(run.ID)
	assert.ErrorIs(t, err, ErrRunFinished)
}

func TestRunner_CancelUnknownRun(t *testing.T) {
	rn := NewRunner(doneFactory(), 1)
	_, err := rn.Cancel("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Nil(t, rn.Get("nope"))
}

func TestRunner_MaxStepsOverrideReachesAgent(t *testing.T) {
	rn := NewRunner(mockFactory(func() llms.LLMClient {
		return testutils.NewMockLLMWithPlans(clickPlan)
	}), 1)

	run, err := rn.Submit("loop forever", 2)
	require.NoError(t, err)
	waitDone(t, run)

	assert.Equal(t, RunStateFailed, run.State())
	require.NotNil(t, run.Result())
	assert.Equal(t, agent.ReasonStepBudget, run.Result().Reason)
	assert.Equal(t, 2, run.Result().Steps)
}

func TestRunner_FactoryErrorFailsRun(t *testing.T) {
	factory := func(ctx context.Context, maxSteps int) (*agent.Agent, func(), error) {
		return nil, nil, errors.New("no browser available")
	}
	rn := NewRunner(factory, 1)

	run, err := rn.Submit("doomed goal", 0)
	require.NoError(t, err)
	waitDone(t, run)

	assert.Equal(t, RunStateFailed, run.State())
	view := run.View()
	assert.Contains(t, view.Error, "agent construction")
	assert.Contains(t, view.Error, "no browser available")
	assert.Nil(t, view.Result)

	events := drain(run)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

func TestRunner_GoalValidationErrorFailsRun(t *testing.T) {
	rn := NewRunner(doneFactory(), 1)

	run, err := rn.Submit(strings.Repeat("g", 5000), 0)
	require.NoError(t, err)
	waitDone(t, run)

	assert.Equal(t, RunStateFailed, run.State())
	assert.Contains(t, run.View().Error, "goal exceeds maximum length")
}

func TestRunner_ShutdownCancelsInFlightRuns(t *testing.T) {
	rn := NewRunner(mockFactory(func() llms.LLMClient {
		return testutils.NewMockLLMWithPlans(clickPlan)
	}), 1)

	run, err := rn.Submit("long goal", 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return run.State() == RunStateRunning
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rn.Shutdown(ctx))

	assert.True(t, rn.Draining())
	assert.Equal(t, RunStateCancelled, run.State())

	_, err = rn.Submit("too late", 0)
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestBroker_SubscribeAfterCloseReplaysOnly(t *testing.T) {
	b := newBroker()
	b.publish(Event{Type: EventStep, RunID: "r1"})
	b.publish(Event{Type: EventResult, RunID: "r1"})
	b.close()

	past, live, detach := b.subscribe()
	defer detach()

	require.Len(t, past, 2)
	_, open := <-live
	assert.False(t, open, "live channel must be closed")

	// Publishing after close is a no-op.
	b.publish(Event{Type: EventStep, RunID: "r1"})
	assert.Len(t, b.events, 2)
}

func TestBroker_DetachStopsDelivery(t *testing.T) {
	b := newBroker()
	_, live, detach := b.subscribe()

	b.publish(Event{Type: EventStep})
	ev := <-live
	assert.Equal(t, EventStep, ev.Type)

	detach()
	b.publish(Event{Type: EventResult})

	_, open := <-live
	assert.False(t, open)
}
