package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/consensus"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/model"
)

const defaultMailboxSize = 32

// decisionResult is what the short-lived consensus goroutine reports back.
type decisionResult struct {
	decision consensus.Decision
	err      error
}

// Agent is the single-writer process: a goroutine draining an
// inbound mailbox one stimulus at a time, the only mutator of its own
// AgentState.
type Agent struct {
	state *AgentState
	env   *Environment

	mailbox chan Stimulus
	done    chan struct{}
	cancel  context.CancelFunc

	consensusScheduled bool // latch: at most one consensus round in flight
	waitTimer          *WaitTimerRef

	publish func(*AgentState) // publishes a read-only snapshot to the registry
}

// NewAgent constructs an Agent around the given state and environment, not
// yet started.
func NewAgent(state *AgentState, env *Environment, publish func(*AgentState)) *Agent {
	size := env.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}
	return &Agent{
		state:   state,
		env:     env,
		mailbox: make(chan Stimulus, size),
		done:    make(chan struct{}),
		publish: publish,
	}
}

// Start launches the agent's single reasoning goroutine.
func (a *Agent) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.run(ctx)
}

// Send delivers a stimulus to the agent's mailbox; it never blocks forever
// since every agent's mailbox is buffered, but a terminated agent's
// mailbox is no longer drained, so Send on a dead agent will eventually
// block. Callers (the registry, the dispatcher's ResultSink) are expected
// to call this only while the agent is known live.
func (a *Agent) Send(s Stimulus) {
	a.mailbox <- s
}

// ActionResult implements dispatch.ResultSink: the dispatcher calls this
// from its own short-lived goroutine once an executor finishes, and it is
// threaded back into the owning agent's mailbox as any other stimulus.
func (a *Agent) ActionResult(actionID string, result dispatch.Result, err error) {
	a.Send(ActionResult{ActionID: actionID, Result: result, Err: err})
}

// Terminate sends a terminate lifecycle stimulus and blocks until the
// agent's goroutine has drained it and exited, then cancels its context as
// a backstop for any outstanding executor work (e.g. shell.Shutdown is the
// caller's responsibility, not this method's).
func (a *Agent) Terminate(reason string) {
	ack := make(chan struct{})
	a.Send(lifecycleControl{terminate: true, reason: reason, ack: ack})
	<-ack
	<-a.done
	if a.cancel != nil {
		a.cancel()
	}
}

// Pause sends a pause lifecycle stimulus and waits for it to be processed,
// without stopping the goroutine: state is persisted and timers are
// cancelled, but the agent keeps running. taskmgr's Manager.Pause does not
// use this method; it terminates the task's agents instead.
func (a *Agent) Pause() {
	ack := make(chan struct{})
	a.Send(lifecycleControl{terminate: false, ack: ack})
	<-ack
}

// Snapshot returns a best-effort read of the agent's current state. It is
// intended for tests and the registry's published-state path; concurrent
// callers should prefer the registry's handle snapshot, which is
// synchronized against the agent's own transitions.
func (a *Agent) Snapshot() *AgentState {
	return a.state
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case stim := <-a.mailbox:
			if a.handle(ctx, stim) {
				return
			}
		}
	}
}

// handle dispatches one stimulus to its handler and reports whether the
// agent should stop running afterward.
func (a *Agent) handle(ctx context.Context, stim Stimulus) bool {
	switch s := stim.(type) {
	case UserMessage:
		a.onUserMessage(s)
	case ActionResult:
		a.onActionResult(ctx, s)
	case WaitExpired:
		a.onWaitExpired(s)
	case ChildTerminated:
		a.onChildTerminated(s)
	case CostRecorded:
		a.onCostRecorded(s)
	case consensusFinished:
		a.onConsensusFinished(ctx, s)
	case spawnEscrow:
		a.onSpawnEscrow(s)
	case adjustBudget:
		a.onAdjustBudget(s)
	case lifecycleControl:
		a.onLifecycleControl(s)
		a.persist(ctx)
		return s.terminate
	}
	a.persist(ctx)
	return false
}

// onUserMessage appends the incoming content to history and schedules a
// consensus round.
func (a *Agent) onUserMessage(s UserMessage) {
	a.state.appendHistory(model.RoleUser, s.Content)
	a.scheduleConsensus()
}

// onActionResult appends the result to history, clears or acks the pending
// entry, then either resumes consensus or arms a wait timer if the
// action's decision asked to wait.
func (a *Agent) onActionResult(ctx context.Context, s ActionResult) {
	pending, ok := a.state.PendingActions[s.ActionID]

	summary := resultSummary(s.Result, s.Err)
	a.state.appendHistory(model.RoleTool, summary)

	if s.Err != nil {
		delete(a.state.PendingActions, s.ActionID)
	} else if s.Result.Async && s.Result.CheckID != "" {
		pending.Acked = true
		pending.AsyncRef = s.Result.CheckID
		a.state.PendingActions[s.ActionID] = pending
	} else {
		delete(a.state.PendingActions, s.ActionID)
	}

	if ok && s.Err == nil && pending.Type == action.KindTodo {
		if items, isList := s.Result.Data["items"].([]map[string]any); isList {
			todos := make([]eventbus.TodoItem, 0, len(items))
			for _, it := range items {
				content, _ := it["content"].(string)
				state, _ := it["state"].(string)
				todos = append(todos, eventbus.TodoItem{Content: content, State: state})
			}
			a.state.Todos = todos
		}
	}

	a.emitActionCompleted(s, pending.Type)

	if ok && truthyWait(pending.Wait) {
		a.armWaitTimer(pending.Wait)
		return
	}
	a.scheduleConsensus()
}

func resultSummary(result dispatch.Result, err error) string {
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	raw, marshalErr := json.Marshal(result.Data)
	if marshalErr != nil {
		return fmt.Sprintf("%v", result.Data)
	}
	return string(raw)
}

func (a *Agent) emitActionCompleted(s ActionResult, kind action.Kind) {
	if a.env.EventBus == nil {
		return
	}
	a.env.EventBus.Broadcast(eventbus.TopicActionsAll, eventbus.ActionCompletedEvent{
		AgentID:       a.state.AgentID,
		ActionID:      s.ActionID,
		ActionKind:    string(kind),
		ResultSummary: resultSummary(s.Result, s.Err),
	})
}

// onWaitExpired is staleness-checked: only the currently armed timer ref
// has any effect.
func (a *Agent) onWaitExpired(s WaitExpired) {
	if a.waitTimer == nil || s.TimerRef != a.waitTimer {
		a.env.warn("agentcore: agent %s ignored stale wait_expired", a.state.AgentID)
		return
	}
	a.waitTimer = nil
	a.scheduleConsensus()
}

// onChildTerminated releases the child's original allocation from
// committed exactly once.
func (a *Agent) onChildTerminated(s ChildTerminated) {
	a.state.BudgetData = a.state.BudgetData.ReleaseCommitted(s.OriginalAllocation)
	a.state.Children = removeString(a.state.Children, s.ChildID)
	a.recomputeOverBudget()
}

// onCostRecorded recomputes over_budget after a cost lands.
func (a *Agent) onCostRecorded(s CostRecorded) {
	a.recomputeOverBudget()
}

func (a *Agent) recomputeOverBudget() {
	if a.env.Tracker == nil {
		return
	}
	spent, err := a.env.Tracker.GetSpent(context.Background(), a.state.AgentID)
	if err != nil {
		return
	}
	a.state.recomputeOverBudget(a.env.Tracker, spent)
}

// onSpawnEscrow records a newly spawned child and escrows its allocation,
// all inside this agent's own goroutine.
func (a *Agent) onSpawnEscrow(s spawnEscrow) {
	if s.allocated != nil {
		a.state.BudgetData = a.state.BudgetData.AddCommitted(*s.allocated)
	}
	a.state.Children = append(a.state.Children, s.childID)
	a.persist(context.Background())
	if s.ack != nil {
		close(s.ack)
	}
}

// onAdjustBudget applies a parent-approved reallocation to this agent's own
// BudgetData, preserving single-writer ownership (see stimulus.go).
func (a *Agent) onAdjustBudget(s adjustBudget) {
	allocated := s.newAllocated
	a.state.BudgetData.Allocated = &allocated
	a.recomputeOverBudget()
	a.persist(context.Background())
	if s.ack != nil {
		close(s.ack)
	}
}

func (a *Agent) onLifecycleControl(s lifecycleControl) {
	if a.waitTimer != nil {
		a.waitTimer = nil
	}
	if s.ack != nil {
		close(s.ack)
	}
}

// scheduleConsensus ensures at most one consensus round is in flight. If a
// round is already scheduled this is a no-op; otherwise the latch is set
// and a short-lived goroutine runs the round, reporting back via
// consensusFinished so the agent goroutine itself never blocks on model
// I/O.
func (a *Agent) scheduleConsensus() {
	if a.consensusScheduled {
		return
	}
	a.consensusScheduled = true

	history := a.representativeHistory()
	env := a.buildEnvelopes()
	data := a.state.BudgetData

	engine := a.engineForProfile()
	if engine == nil {
		a.consensusScheduled = false
		return
	}

	spent := a.currentSpent()

	go func() {
		decision, err := engine.Run(context.Background(), history, env, data, spent)
		a.Send(consensusFinished{decision: decisionResult{decision: decision, err: err}})
	}()
}

func (a *Agent) engineForProfile() *consensus.Engine {
	if a.env.ConsensusEngine == nil {
		return nil
	}
	return a.env.ConsensusEngine(a.state.Profile, a.state.Models)
}

func (a *Agent) currentSpent() float64 {
	if a.env.Tracker == nil {
		return 0
	}
	spent, err := a.env.Tracker.GetSpent(context.Background(), a.state.AgentID)
	if err != nil {
		return 0
	}
	return spent
}

// representativeHistory returns the shared conversation history used to
// prompt every configured model. Per-model histories are kept in lockstep
// (every model sees an identical prompt each round, matching
// consensus.Engine.fanOut's single shared prompt), so the first configured
// model's history stands in for all of them; see DESIGN.md for the
// rationale.
func (a *Agent) representativeHistory() []model.Message {
	if len(a.state.Models) == 0 {
		return nil
	}
	return a.state.ConversationHistories[a.state.Models[0]]
}

func (a *Agent) buildEnvelopes() consensus.Envelopes {
	return consensus.Envelopes{
		Todos:    renderTodos(a.state.Todos),
		Children: renderChildren(a.state.Children),
		Budget:   renderBudget(a.state.BudgetData, a.currentSpent()),
	}
}

// onConsensusFinished clears the latch and, on success, persists the
// decision as a shared assistant turn, checks budget/permission, and hands
// the action to the Dispatcher — history is always updated before
// dispatch.
func (a *Agent) onConsensusFinished(ctx context.Context, s consensusFinished) {
	a.consensusScheduled = false

	if s.decision.err != nil {
		a.state.appendHistory(model.RoleSystem, fmt.Sprintf("consensus failed: %v", s.decision.err))
		return
	}

	decision := s.decision.decision
	summary, _ := json.Marshal(map[string]any{"action": decision.Action, "params": decision.Params})
	a.state.appendHistory(model.RoleAssistant, string(summary))

	actionID := newActionID()
	a.state.PendingActions[actionID] = PendingAction{
		ActionID:  actionID,
		Type:      decision.Action,
		Params:    decision.Params,
		Timestamp: time.Now().Unix(),
		Wait:      truthyWait(decision.Wait),
	}

	if a.env.Dispatcher == nil {
		return
	}

	scope := dispatch.Scope{
		AgentID:          a.state.AgentID,
		TaskID:           a.state.TaskID,
		ParentID:         a.state.ParentID,
		BudgetData:       a.state.BudgetData,
		Spent:            a.currentSpent(),
		CapabilityGroups: a.state.CapabilityGroups,
		EventBus:         a.env.EventBus,
		Store:            a.env.Store,
		SecretsResolver:  a.env.SecretsResolver,
		Scrubber:         a.env.Scrubber,
		Directory:        a.env.Registry,
	}

	a.env.Dispatcher.Dispatch(ctx, actionID, decision.Action, decision.Params, scope, a)
}

func (a *Agent) persist(ctx context.Context) {
	if a.publish != nil {
		a.publish(a.state)
	}
	if a.env.Store == nil {
		return
	}
	blob, err := a.state.Serialize()
	if err != nil {
		return
	}
	_ = a.env.Store.UpsertAgentState(ctx, a.state.AgentID, blob)
}

// armWaitTimer arms a new wait timer, invalidating any previously armed
// one. A numeric wait value schedules an automatic expiry;
// any other truthy value waits indefinitely for an externally-delivered
// WaitExpired (or another stimulus) to move the agent forward.
func (a *Agent) armWaitTimer(wait any) {
	ref := &WaitTimerRef{}
	a.waitTimer = ref

	seconds, ok := waitSeconds(wait)
	if !ok || seconds <= 0 {
		return
	}
	go func() {
		time.Sleep(time.Duration(seconds * float64(time.Second)))
		a.Send(WaitExpired{TimerRef: ref})
	}()
}

func waitSeconds(wait any) (float64, bool) {
	switch v := wait.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func truthyWait(wait any) any {
	switch v := wait.(type) {
	case bool:
		if !v {
			return nil
		}
		return v
	case float64:
		if v <= 0 {
			return nil
		}
		return v
	case int:
		if v <= 0 {
			return nil
		}
		return v
	default:
		return nil
	}
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

var actionIDCounter int64

// newActionID produces a process-unique action id from a monotonic counter
// prefixed with the process start time, where a full UUID would be
// overkill. The counter
// is shared across every agent goroutine in the process, so it is
// incremented atomically rather than relied on as agent-private state.
func newActionID() string {
	n := atomic.AddInt64(&actionIDCounter, 1)
	return fmt.Sprintf("act-%d-%d", processEpoch, n)
}

var processEpoch = time.Now().UnixNano()

func renderTodos(todos []eventbus.TodoItem) string {
	if len(todos) == 0 {
		return ""
	}
	out := ""
	for _, t := range todos {
		out += fmt.Sprintf("- [%s] %s\n", t.State, t.Content)
	}
	return out
}

func renderChildren(children []string) string {
	if len(children) == 0 {
		return ""
	}
	out := ""
	for _, c := range children {
		out += "- " + c + "\n"
	}
	return out
}

func renderBudget(data budget.Data, spent float64) string {
	avail := data.Available(spent)
	if avail == nil {
		return fmt.Sprintf("mode=%s spent=%.4f (unlimited)", data.Mode, spent)
	}
	return fmt.Sprintf("mode=%s spent=%.4f committed=%.4f available=%.4f", data.Mode, spent, data.Committed, *avail)
}

