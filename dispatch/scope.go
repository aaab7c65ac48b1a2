// Package dispatch implements the action dispatcher: given
// (action_kind, params, scope) it classifies the action costly/free, checks
// budget, resolves secret templates, runs the action through a fresh
// Executor, scrubs the result, and reports back. It does not check params
// against the action's JSON Schema; executors reject missing or invalid
// params themselves.
package dispatch

import (
	"context"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/persistence"
	"github.com/shelvick/quoracle/secrets"
)

// Directory is the narrow view of the agent tree/registry that executors
// need: spawning and dismissing children, delivering messages into a live
// agent's mailbox, and walking the tree for announcement fan-out. Kept as
// an interface here (rather than depending on a concrete agentcore type) so
// dispatch and executor have no import-time dependency on agentcore —
// agentcore's registry implements this, mirroring how budget.Ledger is a
// narrow interface persistence.Store satisfies structurally.
type Directory interface {
	Spawn(ctx context.Context, req SpawnRequest) (agentID string, err error)
	Dismiss(ctx context.Context, childID, reason string) error
	Deliver(ctx context.Context, agentID string, content string) error
	IsChild(parentID, childID string) bool
	Descendants(agentID string) []string
	ChildBudget(childID string) (budget.Data, float64, bool)
	SetChildBudget(childID string, data budget.Data) error
}

// SpawnRequest is what spawn_child hands the Directory to create a child.
type SpawnRequest struct {
	ParentID         string
	Profile          string
	InitialMessage   string
	Budget           *float64
	CapabilityGroups []string
}

// Scope is the per-call context the Dispatcher threads through to every
// executor (the `scope` tuple).
type Scope struct {
	AgentID          string
	TaskID           string
	ParentID         string
	BudgetData       budget.Data
	Spent            float64
	CapabilityGroups []string
	EventBus         *eventbus.Bus
	Store            persistence.Store
	SecretsResolver  secrets.Resolver
	Scrubber         secrets.Scrubber
	Directory        Directory
}

// Result is one executor's outcome, before scrubbing.
type Result struct {
	Data     map[string]any
	CheckID  string // set when execute_shell starts an async command
	Async    bool   // true for an async execute_shell start; batch_async also sets it, with every sub-action's result already in Data
	SentTo   []string
	Metadata map[string]any
}

// ExecFunc is one action kind's executor. Every kind's implementation lives
// in the executor package and is registered into a Dispatcher's Executors
// map at composition time (cmd/quoracle or agentcore wiring), keeping
// dispatch itself free of a compiled-in dependency on every executor.
type ExecFunc func(ctx context.Context, kind action.Kind, params map[string]any, scope Scope) (Result, error)
