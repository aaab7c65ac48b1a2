// Package taskmgr implements task lifecycle management: creating a root
// agent for a user prompt, pausing a task by terminating its whole agent
// subtree, resuming a paused or failed task by reconstructing that subtree
// from persistence in parent-first order, and deleting a task outright.
package taskmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelvick/quoracle/agentcore"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/persistence"
)

// CreateRequest is the input to Create: a user prompt plus the profile and
// model set the root agent will run with.
type CreateRequest struct {
	Prompt           string
	Profile          string
	Models           []string
	CapabilityGroups []string
	BudgetLimit      *float64 // nil means unbounded (budget.ModeNA)
}

// Manager owns the Task row lifecycle and the Restorer's process-start
// sweep. It holds no agent state itself — every agent's state blob is
// owned by its own Agent goroutine and reachable only through the
// registry.
type Manager struct {
	store    persistence.Store
	registry *agentcore.AgentRegistry
	warn     func(format string, args ...any)
}

// NewManager creates a Manager backed by store and registry. warn may be
// nil.
func NewManager(store persistence.Store, registry *agentcore.AgentRegistry, warn func(format string, args ...any)) *Manager {
	return &Manager{store: store, registry: registry, warn: warn}
}

func (m *Manager) warnf(format string, args ...any) {
	if m.warn != nil {
		m.warn(format, args...)
	}
}

// Create allocates a task row and spawns its root agent. Input validation
// happens before any row is written, so a rejected request leaves neither a
// task nor an agent behind.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (string, error) {
	if req.Prompt == "" {
		return "", errtag.New(errtag.KindMissingRequiredParam, "taskmgr: prompt is required")
	}
	if len(req.Models) == 0 {
		return "", errtag.New(errtag.KindMissingRequiredParam, "taskmgr: at least one model is required")
	}
	if req.BudgetLimit != nil && *req.BudgetLimit < 0 {
		return "", errtag.New(errtag.KindInvalidParam, "taskmgr: budget_limit must be non-negative")
	}

	taskID := uuid.NewString()
	now := time.Now()
	task := persistence.Task{
		ID:          taskID,
		Prompt:      req.Prompt,
		Status:      persistence.TaskRunning,
		BudgetLimit: req.BudgetLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("taskmgr: create: %w", err)
	}

	budgetData := budget.NewNA()
	if req.BudgetLimit != nil {
		budgetData = budget.NewRoot(*req.BudgetLimit)
	}

	agentID := m.registry.Bootstrap(ctx, taskID, req.Profile, req.Models, req.CapabilityGroups, budgetData)
	if err := m.registry.Deliver(ctx, agentID, req.Prompt); err != nil {
		return "", fmt.Errorf("taskmgr: create: deliver initial prompt: %w", err)
	}
	return taskID, nil
}

// Pause sets the task's status to pausing, synchronously terminates every
// live agent in its subtree (parent and children alike — each agent's own
// persist() call on the terminate path leaves its final state durable),
// then flips status to paused once every agent has stopped. Pausing an
// already-paused or already-pausing task is a no-op.
func (m *Manager) Pause(ctx context.Context, taskID string) error {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("taskmgr: pause: %w", err)
	}
	switch task.Status {
	case persistence.TaskPaused, persistence.TaskPausing:
		return nil
	}
	if task.Status.IsTerminal() {
		return errtag.New(errtag.KindInvalidParam, fmt.Sprintf("taskmgr: cannot pause task %s in terminal state %q", taskID, task.Status))
	}

	if err := m.store.UpdateTaskStatus(ctx, taskID, persistence.TaskPausing); err != nil {
		return fmt.Errorf("taskmgr: pause: %w", err)
	}

	agentIDs, err := m.store.ListAgentsForTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("taskmgr: pause: %w", err)
	}
	for _, agentID := range agentIDs {
		m.registry.Terminate(agentID, "task paused")
	}

	if err := m.store.UpdateTaskStatus(ctx, taskID, persistence.TaskPaused); err != nil {
		return fmt.Errorf("taskmgr: pause: %w", err)
	}
	return nil
}

// Resume reconstructs every agent of a paused or failed task from
// persistence, in parent-first order, and sets the task back to running.
// Resuming a task that is not paused or failed is a no-op.
func (m *Manager) Resume(ctx context.Context, taskID string) error {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("taskmgr: resume: %w", err)
	}
	if task.Status != persistence.TaskPaused && task.Status != persistence.TaskFailed {
		return nil
	}

	if err := m.restoreSubtree(ctx, taskID); err != nil {
		return fmt.Errorf("taskmgr: resume: %w", err)
	}

	return m.store.UpdateTaskStatus(ctx, taskID, persistence.TaskRunning)
}

// Delete pauses a running task (cascading its subtree termination) and then
// cascade-deletes its task row, conversation entries, and anything else the
// store scopes to the task.
func (m *Manager) Delete(ctx context.Context, taskID string) error {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("taskmgr: delete: %w", err)
	}
	if !task.Status.IsTerminal() && task.Status != persistence.TaskPaused {
		if err := m.Pause(ctx, taskID); err != nil {
			return fmt.Errorf("taskmgr: delete: %w", err)
		}
	}
	if err := m.store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("taskmgr: delete: %w", err)
	}
	return nil
}

// RestoreOnStartup re-attaches every task left in status=running to a fresh
// agent subtree. A process crash leaves such tasks' rows marked running
// with no live agent goroutines behind them; this walks every one of them
// in parent-first order without touching task status, since they were
// never actually paused.
func (m *Manager) RestoreOnStartup(ctx context.Context) error {
	tasks, err := m.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("taskmgr: restore on startup: %w", err)
	}
	for _, task := range tasks {
		if task.Status != persistence.TaskRunning {
			continue
		}
		if err := m.restoreSubtree(ctx, task.ID); err != nil {
			m.warnf("taskmgr: restore on startup: task %s: %v", task.ID, err)
		}
	}
	return nil
}

// restoreSubtree loads every agent belonging to taskID, orders them
// parent-first, and re-attaches each to a fresh Agent goroutine via
// RegisterRestored, reconstructing parent/child wiring purely from each
// agent's persisted Children/BudgetData — no escrow stimuli are replayed.
func (m *Manager) restoreSubtree(ctx context.Context, taskID string) error {
	agentIDs, err := m.store.ListAgentsForTask(ctx, taskID)
	if err != nil {
		return err
	}

	states := make([]*agentcore.AgentState, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		blob, err := m.store.LoadAgent(ctx, agentID)
		if err != nil {
			return fmt.Errorf("load agent %s: %w", agentID, err)
		}
		state, err := agentcore.DeserializeState(blob)
		if err != nil {
			return fmt.Errorf("deserialize agent %s: %w", agentID, err)
		}
		if err := state.Validate(); err != nil {
			return fmt.Errorf("validate agent %s: %w", agentID, err)
		}
		dropStaleAsyncActions(state)
		states = append(states, state)
	}

	for _, state := range parentFirstOrder(states) {
		m.registry.RegisterRestored(ctx, state)
	}
	return nil
}

// dropStaleAsyncActions drops any pending_actions entry that was still
// async and un-acked at the moment this state was last persisted — its
// executor died with the process, so there is no result to wait for, and
// the next consensus round decides whether to re-issue it.
func dropStaleAsyncActions(state *agentcore.AgentState) {
	for id, pending := range state.PendingActions {
		if pending.AsyncRef == "" || pending.Acked {
			continue
		}
		delete(state.PendingActions, id)
	}
}

// parentFirstOrder topologically sorts states so that every agent is
// preceded by its parent (root agents, whose ParentID is empty, sort
// first). A child whose parent never shows up in states (data corruption,
// or a half-written spawn) is appended last rather than dropped, so
// RegisterRestored still sees every persisted agent exactly once.
func parentFirstOrder(states []*agentcore.AgentState) []*agentcore.AgentState {
	byID := make(map[string]*agentcore.AgentState, len(states))
	for _, s := range states {
		byID[s.AgentID] = s
	}

	var ordered []*agentcore.AgentState
	placed := make(map[string]bool, len(states))
	remaining := append([]*agentcore.AgentState{}, states...)

	for len(remaining) > 0 {
		progressed := false
		var next []*agentcore.AgentState
		for _, s := range remaining {
			_, parentKnown := byID[s.ParentID]
			if s.ParentID == "" || placed[s.ParentID] || !parentKnown {
				ordered = append(ordered, s)
				placed[s.AgentID] = true
				progressed = true
				continue
			}
			next = append(next, s)
		}
		if !progressed {
			// Every remaining agent is waiting on a parent still in
			// `remaining` — a cycle, which spawn_child's id-based tree can
			// never actually produce. Append what's left in its original
			// order rather than loop forever.
			ordered = append(ordered, remaining...)
			break
		}
		remaining = next
	}
	return ordered
}
