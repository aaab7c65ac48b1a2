package agentcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/eventbus"
)

func newTestAgent(t *testing.T, reply string, dispatcher *dispatch.Dispatcher) *Agent {
	t.Helper()
	ledger := newFakeLedger()
	tracker := budget.NewTracker(ledger)
	env := &Environment{
		Tracker:         tracker,
		ConsensusEngine: newTestEngineFactory(tracker, reply),
		Dispatcher:      dispatcher,
		EventBus:        eventbus.New(),
	}
	state := NewAgentState("a1", "t1", "", "default", []string{"m1", "m2"}, nil, budget.NewRoot(100))
	a := NewAgent(state, env, nil)
	return a
}

// TestConsensusScheduledLatch checks that calling
// scheduleConsensus while a round is already in flight is a no-op.
func TestConsensusScheduledLatch(t *testing.T) {
	a := newTestAgent(t, `{"action":"todo","params":{"items":[]}}`, nil)
	a.consensusScheduled = true
	a.scheduleConsensus() // must not panic or start a second round
	require.True(t, a.consensusScheduled)
}

// TestWaitTimerStaleness checks that a wait_expired stimulus
// naming a stale timer ref has no effect.
func TestWaitTimerStaleness(t *testing.T) {
	a := newTestAgent(t, "", nil)
	a.armWaitTimer(true) // non-numeric wait: armed indefinitely, no auto-expiry goroutine
	stale := a.waitTimer

	a.armWaitTimer(true) // re-arm: invalidates the previous ref
	current := a.waitTimer
	require.NotSame(t, stale, current)

	a.onWaitExpired(WaitExpired{TimerRef: stale})
	require.NotNil(t, a.waitTimer, "stale wait_expired must not clear the currently armed timer")
	require.False(t, a.consensusScheduled)

	a.onWaitExpired(WaitExpired{TimerRef: current})
	require.Nil(t, a.waitTimer)
}

// TestSpawnEscrowAddsCommittedAndChild checks that escrow
// lands in committed and the child id lands in Children inside the
// parent's own handler, before the ack fires.
func TestSpawnEscrowAddsCommittedAndChild(t *testing.T) {
	a := newTestAgent(t, "", nil)
	allocated := 30.0
	ack := make(chan struct{})
	a.onSpawnEscrow(spawnEscrow{childID: "c1", allocated: &allocated, ack: ack})

	require.Equal(t, 30.0, a.state.BudgetData.Committed)
	require.Contains(t, a.state.Children, "c1")
	select {
	case <-ack:
	default:
		t.Fatal("ack channel was not closed")
	}
}

// TestChildTerminatedReleasesEscrowOnce checks that exactly one
// release happens per termination, clamped at zero.
func TestChildTerminatedReleasesEscrowOnce(t *testing.T) {
	a := newTestAgent(t, "", nil)
	allocated := 30.0
	a.onSpawnEscrow(spawnEscrow{childID: "c1", allocated: &allocated, ack: make(chan struct{})})
	require.Equal(t, 30.0, a.state.BudgetData.Committed)

	a.onChildTerminated(ChildTerminated{ChildID: "c1", Reason: "done", OriginalAllocation: 30})
	require.Equal(t, 0.0, a.state.BudgetData.Committed)
	require.NotContains(t, a.state.Children, "c1")

	// A second, erroneous release for the same child must clamp at zero
	// rather than go negative.
	a.onChildTerminated(ChildTerminated{ChildID: "c1", Reason: "done", OriginalAllocation: 30})
	require.Equal(t, 0.0, a.state.BudgetData.Committed)
}

// TestAdjustBudgetAppliesAndAcks checks that adjust_budget mutates only the
// receiving agent's own BudgetData, and always acks.
func TestAdjustBudgetAppliesAndAcks(t *testing.T) {
	a := newTestAgent(t, "", nil)
	ack := make(chan struct{})
	a.onAdjustBudget(adjustBudget{newAllocated: 50, ack: ack})
	require.NotNil(t, a.state.BudgetData.Allocated)
	require.Equal(t, 50.0, *a.state.BudgetData.Allocated)
	select {
	case <-ack:
	default:
		t.Fatal("ack channel was not closed")
	}
}

// TestUserMessageDrivesConsensusToDispatch exercises the full single-writer
// loop end to end (the "user_message -> consensus -> dispatch" path):
// a real Start()'d agent receives a user_message, runs a scripted consensus
// round that agrees on a todo action, the decision is handed to the
// Dispatcher, and a state snapshot is published.
func TestUserMessageDrivesConsensusToDispatch(t *testing.T) {
	ledger := newFakeLedger()
	tracker := budget.NewTracker(ledger)
	var gotKind action.Kind
	dispatcher := dispatch.NewDispatcher(budget.NewEnforcer(tracker), map[action.Kind]dispatch.ExecFunc{
		action.KindTodo: func(_ context.Context, kind action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
			gotKind = kind
			return dispatch.Result{Data: map[string]any{"ok": true}}, nil
		},
	})

	env := &Environment{
		Tracker:         tracker,
		ConsensusEngine: newTestEngineFactory(tracker, `{"action":"todo","params":{"items":[{"content":"check logs","state":"todo"}]}}`),
		Dispatcher:      dispatcher,
		EventBus:        eventbus.New(),
	}
	state := NewAgentState("a1", "t1", "", "default", []string{"m1"}, nil, budget.NewRoot(100))

	var published *AgentState
	a := NewAgent(state, env, func(s *AgentState) { published = s })
	a.Start(context.Background())

	a.Send(UserMessage{Content: "please tidy up"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if gotKind == action.KindTodo {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, action.KindTodo, gotKind)
	require.NotNil(t, published)

	a.Terminate("test done")
}
