package agentcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/persistence"
	"github.com/shelvick/quoracle/registry"
)

// handle is the registry's read-only view of one live agent: a reference
// to its mailbox for delivery, plus the last state snapshot it published
// after each transition, so that history/children/todos/budget are
// persisted, and here published, before any action reaches the
// dispatcher.
type handle struct {
	agent *Agent

	mu    sync.RWMutex
	state AgentState
}

func (h *handle) publish(s *AgentState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = *s
}

func (h *handle) snapshot() AgentState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// AgentRegistry is the id → handle table: parent/child references are ids
// resolved through this registry,
// never mutual struct pointers. It implements dispatch.Directory so
// executors never depend on agentcore directly, wrapping a generic
// registry.Base[T] keyed table of id to live agent
// handles.
type AgentRegistry struct {
	base *registry.Base[*handle]
	env  *Environment
}

// NewAgentRegistry creates an empty registry. The Environment is expected
// to have its Registry field set to this instance before any agent starts,
// so spawned children can look up Dispatcher/EventBus/etc. through it.
func NewAgentRegistry(env *Environment) *AgentRegistry {
	return &AgentRegistry{base: registry.New[*handle](), env: env}
}

// Bootstrap registers and starts the task's root agent, returning its id.
func (r *AgentRegistry) Bootstrap(ctx context.Context, taskID, profile string, models, capabilityGroups []string, budgetData budget.Data) string {
	agentID := uuid.NewString()
	state := NewAgentState(agentID, taskID, "", profile, models, capabilityGroups, budgetData)
	r.register(ctx, state)
	return agentID
}

func (r *AgentRegistry) register(ctx context.Context, state *AgentState) {
	if registrar, ok := r.env.Store.(persistence.AgentRegistrar); ok {
		blob, err := state.Serialize()
		if err == nil {
			_ = registrar.RegisterAgent(ctx, state.AgentID, state.TaskID, blob)
		}
	}

	h := &handle{state: *state}
	agent := NewAgent(state, r.env, h.publish)
	h.agent = agent
	r.base.Replace(state.AgentID, h)
	agent.Start(ctx)

	if r.env.EventBus != nil {
		r.env.EventBus.Broadcast(eventbus.TopicAgentsLifecycle, eventbus.AgentSpawned{
			AgentID:    state.AgentID,
			ParentID:   state.ParentID,
			TaskID:     state.TaskID,
			BudgetData: state.BudgetData,
			Timestamp:  time.Now().Unix(),
		})
	}
}

// RegisterRestored re-attaches a previously persisted state to a new live
// Agent goroutine: used by the task restorer to bring an agent back after a
// pause/resume or process restart, without re-running the spawn_child
// escrow flow or writing a duplicate agents row (RegisterAgent already ran
// when the agent was first created).
func (r *AgentRegistry) RegisterRestored(ctx context.Context, state *AgentState) {
	h := &handle{state: *state}
	agent := NewAgent(state, r.env, h.publish)
	h.agent = agent
	r.base.Replace(state.AgentID, h)
	agent.Start(ctx)
}

// Lookup returns the published snapshot for agentID, for callers (the task
// restorer, diagnostics) that need to read state without going through
// dispatch.Directory's narrower surface.
func (r *AgentRegistry) Lookup(agentID string) (AgentState, bool) {
	h, ok := r.base.Get(agentID)
	if !ok {
		return AgentState{}, false
	}
	return h.snapshot(), true
}

// Terminate stops agentID's goroutine and removes it from the registry,
// without the parent-escrow notification Dismiss performs — used by the
// task manager when tearing down a whole subtree at once rather than one
// dismiss_child action at a time.
func (r *AgentRegistry) Terminate(agentID, reason string) {
	h, ok := r.base.Get(agentID)
	if !ok {
		return
	}
	h.agent.Terminate(reason)
	_ = r.base.Remove(agentID)

	if r.env.EventBus != nil {
		r.env.EventBus.Broadcast(eventbus.TopicAgentsLifecycle, eventbus.AgentTerminated{
			AgentID:   agentID,
			Reason:    reason,
			Timestamp: time.Now().Unix(),
		})
	}
}

// Spawn implements dispatch.Directory: escrow the requested allocation from
// the parent, create and start the child agent, record it in the parent's
// children list, then deliver the initial message.
func (r *AgentRegistry) Spawn(ctx context.Context, req dispatch.SpawnRequest) (string, error) {
	parentHandle, ok := r.base.Get(req.ParentID)
	if !ok {
		return "", errtag.New(errtag.KindNotFound, fmt.Sprintf("spawn_child: parent %q not found", req.ParentID))
	}

	childBudget := budget.NewNA()
	var allocatedPtr *float64
	if req.Budget != nil {
		allocated := *req.Budget
		allocatedPtr = &allocated
		childBudget = budget.NewAllocated(allocated)
	}

	parentState := parentHandle.snapshot()
	childID := uuid.NewString()
	capabilityGroups := req.CapabilityGroups
	if capabilityGroups == nil {
		capabilityGroups = parentState.CapabilityGroups
	}

	// The child id lands in the parent's own Children list, inside the
	// parent's goroutine, before this call returns to the dispatcher that
	// will announce completion to the event bus.
	ack := make(chan struct{})
	parentHandle.agent.Send(spawnEscrow{childID: childID, allocated: allocatedPtr, ack: ack})
	<-ack

	childState := NewAgentState(childID, parentState.TaskID, req.ParentID, req.Profile, parentState.Models, capabilityGroups, childBudget)
	r.register(ctx, childState)

	if req.InitialMessage != "" {
		if childHandle, ok := r.base.Get(childID); ok {
			childHandle.agent.Send(UserMessage{Content: req.InitialMessage, SenderID: req.ParentID})
		}
	}

	return childID, nil
}

// Dismiss implements dispatch.Directory: terminate the child agent and
// notify the parent so it can release escrow, handled inside the parent's
// own goroutine via a child_terminated stimulus.
func (r *AgentRegistry) Dismiss(ctx context.Context, childID, reason string) error {
	childHandle, ok := r.base.Get(childID)
	if !ok {
		return errtag.New(errtag.KindNotFound, fmt.Sprintf("dismiss_child: %q not found", childID))
	}

	childState := childHandle.snapshot()
	originalAllocation := 0.0
	if childState.BudgetData.Allocated != nil {
		originalAllocation = *childState.BudgetData.Allocated
	}

	childHandle.agent.Terminate(reason)
	_ = r.base.Remove(childID)

	if r.env.EventBus != nil {
		r.env.EventBus.Broadcast(eventbus.TopicAgentsLifecycle, eventbus.AgentTerminated{
			AgentID:   childID,
			Reason:    reason,
			Timestamp: time.Now().Unix(),
		})
	}

	if childState.ParentID != "" {
		if parentHandle, ok := r.base.Get(childState.ParentID); ok {
			parentHandle.agent.Send(ChildTerminated{
				ChildID:            childID,
				Reason:             reason,
				OriginalAllocation: originalAllocation,
			})
		}
	}
	return nil
}

// Deliver implements dispatch.Directory: append content as a user_message
// stimulus in the target agent's mailbox.
func (r *AgentRegistry) Deliver(ctx context.Context, agentID, content string) error {
	h, ok := r.base.Get(agentID)
	if !ok {
		return errtag.New(errtag.KindNotFound, fmt.Sprintf("send_message: recipient %q not found", agentID))
	}
	h.agent.Send(UserMessage{Content: content})
	return nil
}

// IsChild implements dispatch.Directory.
func (r *AgentRegistry) IsChild(parentID, childID string) bool {
	parentHandle, ok := r.base.Get(parentID)
	if !ok {
		return false
	}
	for _, c := range parentHandle.snapshot().Children {
		if c == childID {
			return true
		}
	}
	return false
}

// Descendants implements dispatch.Directory: a breadth-first walk of the
// id tree below agentID.
func (r *AgentRegistry) Descendants(agentID string) []string {
	h, ok := r.base.Get(agentID)
	if !ok {
		return nil
	}
	var out []string
	queue := append([]string{}, h.snapshot().Children...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		if childHandle, ok := r.base.Get(id); ok {
			queue = append(queue, childHandle.snapshot().Children...)
		}
	}
	return out
}

// ChildBudget implements dispatch.Directory.
func (r *AgentRegistry) ChildBudget(childID string) (budget.Data, float64, bool) {
	h, ok := r.base.Get(childID)
	if !ok {
		return budget.Data{}, 0, false
	}
	state := h.snapshot()
	spent := 0.0
	if r.env.Tracker != nil {
		spent, _ = r.env.Tracker.GetSpent(context.Background(), childID)
	}
	return state.BudgetData, spent, true
}

// SetChildBudget implements dispatch.Directory by routing the new
// allocation through the child's own goroutine (an adjustBudget stimulus),
// preserving single-writer ownership of the child's state instead of mutating
// the child's BudgetData from the parent's call stack.
func (r *AgentRegistry) SetChildBudget(childID string, data budget.Data) error {
	h, ok := r.base.Get(childID)
	if !ok {
		return errtag.New(errtag.KindNotFound, fmt.Sprintf("adjust_budget: %q not found", childID))
	}
	if data.Allocated == nil {
		return errtag.New(errtag.KindInvalidParam, "adjust_budget requires a concrete new allocation")
	}
	ack := make(chan struct{})
	h.agent.Send(adjustBudget{newAllocated: *data.Allocated, ack: ack})
	<-ack
	return nil
}
