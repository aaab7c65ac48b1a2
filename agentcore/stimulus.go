package agentcore

import "github.com/shelvick/quoracle/dispatch"

// Stimulus is one event delivered to an Agent's mailbox. Concrete types
// below are the core set an agent reacts to, plus the internal
// consensusFinished event and lifecycle control messages; all are handled
// one at a time by the single Agent goroutine, which is the only writer of
// its AgentState.
type Stimulus interface {
	stimulus()
}

// UserMessage is a prompt from an external sender or a parent/sibling
// agent.
type UserMessage struct {
	Content  string
	SenderID string
}

func (UserMessage) stimulus() {}

// ActionResult is an executor's outcome re-entering the mailbox via the
// Agent's ResultSink implementation.
type ActionResult struct {
	ActionID string
	Result   dispatch.Result
	Err      error
}

func (ActionResult) stimulus() {}

// WaitExpired must be checked against the currently armed timer before it
// has any effect.
type WaitExpired struct {
	TimerRef *WaitTimerRef
}

func (WaitExpired) stimulus() {}

// ChildTerminated releases escrow and recomputes over_budget.
type ChildTerminated struct {
	ChildID            string
	Reason             string
	OriginalAllocation float64
}

func (ChildTerminated) stimulus() {}

// CostRecorded recomputes over_budget from the tracker.
type CostRecorded struct {
	Amount float64
}

func (CostRecorded) stimulus() {}

// consensusFinished is the internal event a short-lived consensus goroutine
// reports back with; the agent goroutine itself never blocks on model I/O.
type consensusFinished struct {
	decision decisionResult
}

func (consensusFinished) stimulus() {}

// spawnEscrow is sent by the AgentRegistry to a parent agent when one of
// its spawn_child actions is approved: it records the new child id and
// escrows its allocation, all inside the parent's own goroutine, so the
// registry never mutates a live agent's BudgetData or Children from
// outside.
type spawnEscrow struct {
	childID   string
	allocated *float64
	ack       chan struct{}
}

func (spawnEscrow) stimulus() {}

// adjustBudget is sent by the AgentRegistry to a child agent when its
// parent's adjust_budget action approves a new allocation, preserving
// single-writer ownership of BudgetData instead of letting the registry
// mutate the child's state directly.
type adjustBudget struct {
	newAllocated float64
	ack          chan struct{}
}

func (adjustBudget) stimulus() {}

// lifecycleControl is the pause/terminate control stimulus: persist state,
// cancel timers, stop cleanly.
type lifecycleControl struct {
	terminate bool
	reason    string
	ack       chan struct{}
}

func (lifecycleControl) stimulus() {}

// WaitTimerRef is the unique timer reference an agent arms on every wait:
// identity, not value, distinguishes the currently armed timer from stale
// ones. An empty struct pointer is sufficient since only its address is
// ever compared.
type WaitTimerRef struct{}
