package taskmgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/agentcore"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/consensus"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/model"
	"github.com/shelvick/quoracle/persistence"
)

// fakeLedger is a minimal in-memory budget.Ledger test double, mirroring
// agentcore's own fakeLedger.
type fakeLedger struct {
	mu      sync.Mutex
	byAgent map[string]float64
	byTask  map[string]float64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byAgent: map[string]float64{}, byTask: map[string]float64{}}
}

func (l *fakeLedger) SumCostByAgent(_ context.Context, agentID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byAgent[agentID], nil
}

func (l *fakeLedger) SumCostByTask(_ context.Context, taskID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byTask[taskID], nil
}

func (l *fakeLedger) AppendCost(_ context.Context, r budget.CostRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byAgent[r.AgentID] += r.Amount
	l.byTask[r.TaskID] += r.Amount
	return nil
}

// scriptedCaller always replies with the same todo action, keeping the
// consensus round harmless for tests that only care about task/agent
// lifecycle.
type scriptedCaller struct{ id string }

func (c *scriptedCaller) ID() string { return c.id }

func (c *scriptedCaller) Generate(_ context.Context, _ []model.Message, _ model.SamplingOpts) (*model.Reply, error) {
	return &model.Reply{Content: `{"action":"todo","params":{"items":[]}}`}, nil
}

func newTestEngineFactory(tracker *budget.Tracker) func(profile string, models []string) *consensus.Engine {
	return func(_ string, models []string) *consensus.Engine {
		callers := make([]consensus.Caller, len(models))
		for i, id := range models {
			callers[i] = &scriptedCaller{id: id}
		}
		return &consensus.Engine{
			Models:              callers,
			Merger:              consensus.NewMerger(nil),
			Enforcer:            budget.NewEnforcer(tracker),
			Schedule:            consensus.DefaultSchedule,
			MaxRefinementRounds: 4,
		}
	}
}

func newTestManager(t *testing.T) (*Manager, persistence.Store, *agentcore.AgentRegistry) {
	t.Helper()
	store := persistence.NewMemory()
	tracker := budget.NewTracker(newFakeLedger())
	dispatcher := dispatch.NewDispatcher(budget.NewEnforcer(tracker), map[action.Kind]dispatch.ExecFunc{})

	env := &agentcore.Environment{
		Store:           store,
		Tracker:         tracker,
		Dispatcher:      dispatcher,
		EventBus:        eventbus.New(),
		ConsensusEngine: newTestEngineFactory(tracker),
	}
	registry := agentcore.NewAgentRegistry(env)
	env.Registry = registry

	mgr := NewManager(store, registry, nil)
	return mgr, store, registry
}

func TestCreateRejectsMissingPrompt(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.Create(context.Background(), CreateRequest{Models: []string{"m1"}})
	require.Error(t, err)
}

func TestCreateRejectsMissingModels(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.Create(context.Background(), CreateRequest{Prompt: "hi"})
	require.Error(t, err)
}

func TestCreateRejectsNegativeBudget(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	neg := -1.0
	_, err := mgr.Create(context.Background(), CreateRequest{Prompt: "hi", Models: []string{"m1"}, BudgetLimit: &neg})
	require.Error(t, err)
}

func TestCreateAllocatesTaskAndRootAgent(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()
	limit := 10.0

	taskID, err := mgr.Create(ctx, CreateRequest{
		Prompt:      "find the answer",
		Profile:     "default",
		Models:      []string{"m1"},
		BudgetLimit: &limit,
	})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	task, err := store.GetTask(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, persistence.TaskRunning, task.Status)
	require.Equal(t, &limit, task.BudgetLimit)

	agentIDs, err := store.ListAgentsForTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, agentIDs, 1)
}

func TestPauseTerminatesSubtreeAndIsIdempotent(t *testing.T) {
	mgr, store, registry := newTestManager(t)
	ctx := context.Background()

	taskID, err := mgr.Create(ctx, CreateRequest{Prompt: "go", Models: []string{"m1"}})
	require.NoError(t, err)

	agentIDs, err := store.ListAgentsForTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, agentIDs, 1)
	rootID := agentIDs[0]

	require.NoError(t, mgr.Pause(ctx, taskID))

	task, err := store.GetTask(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, persistence.TaskPaused, task.Status)

	_, live := registry.Lookup(rootID)
	require.False(t, live)

	// Pausing again is a no-op, not an error.
	require.NoError(t, mgr.Pause(ctx, taskID))
}

func TestResumeOnlyFromPausedOrFailed(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	taskID, err := mgr.Create(ctx, CreateRequest{Prompt: "go", Models: []string{"m1"}})
	require.NoError(t, err)

	// Still running: Resume is a no-op.
	require.NoError(t, mgr.Resume(ctx, taskID))
}

func TestResumeRestoresAgentsAndFlipsStatus(t *testing.T) {
	mgr, store, registry := newTestManager(t)
	ctx := context.Background()

	taskID, err := mgr.Create(ctx, CreateRequest{Prompt: "go", Models: []string{"m1"}})
	require.NoError(t, err)
	require.NoError(t, mgr.Pause(ctx, taskID))

	require.NoError(t, mgr.Resume(ctx, taskID))

	task, err := store.GetTask(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, persistence.TaskRunning, task.Status)

	agentIDs, err := store.ListAgentsForTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, agentIDs, 1)

	// Give the restored goroutine a moment to start and publish a snapshot.
	time.Sleep(10 * time.Millisecond)
	_, live := registry.Lookup(agentIDs[0])
	require.True(t, live)
}

func TestDeletePausesThenRemoves(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	taskID, err := mgr.Create(ctx, CreateRequest{Prompt: "go", Models: []string{"m1"}})
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, taskID))

	_, err = store.GetTask(ctx, taskID)
	require.ErrorIs(t, err, persistence.ErrTaskNotFound)
}

func TestRestoreOnStartupOnlyTouchesRunningTasks(t *testing.T) {
	mgr, store, registry := newTestManager(t)
	ctx := context.Background()

	runningID, err := mgr.Create(ctx, CreateRequest{Prompt: "go", Models: []string{"m1"}})
	require.NoError(t, err)

	pausedID, err := mgr.Create(ctx, CreateRequest{Prompt: "go2", Models: []string{"m1"}})
	require.NoError(t, err)
	require.NoError(t, mgr.Pause(ctx, pausedID))

	require.NoError(t, mgr.RestoreOnStartup(ctx))

	runningTask, err := store.GetTask(ctx, runningID)
	require.NoError(t, err)
	require.Equal(t, persistence.TaskRunning, runningTask.Status)

	pausedTask, err := store.GetTask(ctx, pausedID)
	require.NoError(t, err)
	require.Equal(t, persistence.TaskPaused, pausedTask.Status)

	agentIDs, err := store.ListAgentsForTask(ctx, runningID)
	require.NoError(t, err)
	require.Len(t, agentIDs, 1)
	time.Sleep(10 * time.Millisecond)
	_, live := registry.Lookup(agentIDs[0])
	require.True(t, live)
}

func TestParentFirstOrderPlacesParentsBeforeChildren(t *testing.T) {
	root := &agentcore.AgentState{AgentID: "root", ParentID: ""}
	child := &agentcore.AgentState{AgentID: "child", ParentID: "root"}
	grandchild := &agentcore.AgentState{AgentID: "grandchild", ParentID: "child"}

	// Deliberately out of order.
	ordered := parentFirstOrder([]*agentcore.AgentState{grandchild, child, root})

	require.Len(t, ordered, 3)
	index := make(map[string]int, 3)
	for i, s := range ordered {
		index[s.AgentID] = i
	}
	require.Less(t, index["root"], index["child"])
	require.Less(t, index["child"], index["grandchild"])
}

func TestParentFirstOrderKeepsOrphanRatherThanDropIt(t *testing.T) {
	orphan := &agentcore.AgentState{AgentID: "orphan", ParentID: "missing-parent"}
	root := &agentcore.AgentState{AgentID: "root", ParentID: ""}

	ordered := parentFirstOrder([]*agentcore.AgentState{orphan, root})
	require.Len(t, ordered, 2)
}
