package agentcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/eventbus"
)

func newTestRegistry(t *testing.T) (*AgentRegistry, *budget.Tracker) {
	t.Helper()
	ledger := newFakeLedger()
	tracker := budget.NewTracker(ledger)
	env := &Environment{
		Tracker:  tracker,
		EventBus: eventbus.New(),
		// No ConsensusEngine/Dispatcher: these tests drive the registry
		// directly via Spawn/Dismiss/Deliver, never letting an agent reach
		// its own consensus round.
	}
	reg := NewAgentRegistry(env)
	env.Registry = reg
	return reg, tracker
}

func TestSpawnEscrowsAndRegistersChild(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rootID := reg.Bootstrap(ctx, "task-1", "default", []string{"m1"}, nil, budget.NewRoot(100))

	allocated := 30.0
	childID, err := reg.Spawn(ctx, dispatch.SpawnRequest{
		ParentID: rootID,
		Profile:  "default",
		Budget:   &allocated,
	})
	require.NoError(t, err)
	require.NotEmpty(t, childID)

	require.True(t, reg.IsChild(rootID, childID))
	require.Contains(t, reg.Descendants(rootID), childID)

	rootHandle, ok := reg.base.Get(rootID)
	require.True(t, ok)
	require.Equal(t, 30.0, rootHandle.snapshot().BudgetData.Committed)

	data, _, ok := reg.ChildBudget(childID)
	require.True(t, ok)
	require.NotNil(t, data.Allocated)
	require.Equal(t, 30.0, *data.Allocated)
}

func TestSpawnUnknownParentReturnsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Spawn(context.Background(), dispatch.SpawnRequest{ParentID: "nope"})
	require.Error(t, err)
}

func TestDismissReleasesEscrowFromParent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rootID := reg.Bootstrap(ctx, "task-1", "default", []string{"m1"}, nil, budget.NewRoot(100))
	allocated := 30.0
	childID, err := reg.Spawn(ctx, dispatch.SpawnRequest{ParentID: rootID, Profile: "default", Budget: &allocated})
	require.NoError(t, err)

	require.NoError(t, reg.Dismiss(ctx, childID, "done"))

	_, ok := reg.base.Get(childID)
	require.False(t, ok, "dismissed child must be removed from the registry")

	// The release happens inside the parent's own goroutine via a
	// child_terminated stimulus; give it a moment to land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		rootHandle, ok := reg.base.Get(rootID)
		require.True(t, ok)
		if rootHandle.snapshot().BudgetData.Committed == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	rootHandle, _ := reg.base.Get(rootID)
	require.Equal(t, 0.0, rootHandle.snapshot().BudgetData.Committed)
	require.NotContains(t, rootHandle.snapshot().Children, childID)
}

func TestDismissUnknownChildReturnsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.Dismiss(context.Background(), "nope", "reason")
	require.Error(t, err)
}

func TestSetChildBudgetRoutesThroughChildGoroutine(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rootID := reg.Bootstrap(ctx, "task-1", "default", []string{"m1"}, nil, budget.NewRoot(100))
	allocated := 30.0
	childID, err := reg.Spawn(ctx, dispatch.SpawnRequest{ParentID: rootID, Profile: "default", Budget: &allocated})
	require.NoError(t, err)

	newAllocated := 50.0
	require.NoError(t, reg.SetChildBudget(childID, budget.Data{Allocated: &newAllocated, Mode: budget.ModeAllocated}))

	data, _, ok := reg.ChildBudget(childID)
	require.True(t, ok)
	require.Equal(t, 50.0, *data.Allocated)
}

func TestSetChildBudgetRequiresConcreteAllocation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	rootID := reg.Bootstrap(ctx, "task-1", "default", []string{"m1"}, nil, budget.NewRoot(100))
	allocated := 30.0
	childID, err := reg.Spawn(ctx, dispatch.SpawnRequest{ParentID: rootID, Profile: "default", Budget: &allocated})
	require.NoError(t, err)

	err = reg.SetChildBudget(childID, budget.NewNA())
	require.Error(t, err)
}

func TestDeliverAppendsUserMessage(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	rootID := reg.Bootstrap(ctx, "task-1", "default", []string{"m1"}, nil, budget.NewNA())

	require.NoError(t, reg.Deliver(ctx, rootID, "hello there"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h, ok := reg.base.Get(rootID)
		require.True(t, ok)
		hist := h.snapshot().ConversationHistories["m1"]
		if len(hist) > 0 {
			require.Equal(t, "hello there", hist[len(hist)-1].Content)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("delivered message never appeared in history")
}

func TestDescendantsWalksMultipleLevels(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	rootID := reg.Bootstrap(ctx, "task-1", "default", []string{"m1"}, nil, budget.NewNA())

	childID, err := reg.Spawn(ctx, dispatch.SpawnRequest{ParentID: rootID, Profile: "default"})
	require.NoError(t, err)
	grandchildID, err := reg.Spawn(ctx, dispatch.SpawnRequest{ParentID: childID, Profile: "default"})
	require.NoError(t, err)

	descendants := reg.Descendants(rootID)
	require.Contains(t, descendants, childID)
	require.Contains(t, descendants, grandchildID)
	require.False(t, reg.IsChild(rootID, grandchildID))
}
