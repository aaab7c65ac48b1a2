// Package eventbus implements the topic-oriented publish/subscribe layer,
// combining the subscriber-bookkeeping locking pattern of registry.Base[T]
// with the typed lifecycle-event vocabulary of the goa-ai runtime hooks
// package (one concrete struct per lifecycle phase, each with its own Kind
// method; there is no shared embedded base).
package eventbus

// Event is the interface every payload published on the bus satisfies.
// Concrete types below carry the per-topic-family fields each subscriber
// needs; subscribers type-switch on Kind() or the concrete type to extract
// them.
type Event interface {
	Kind() string
}

// AgentSpawned is the agents:lifecycle payload for a successful spawn.
type AgentSpawned struct {
	AgentID    string
	ParentID   string
	TaskID     string
	Task       string
	BudgetData any
	Timestamp  int64
}

func (AgentSpawned) Kind() string { return "agent_spawned" }

// AgentTerminated is the agents:lifecycle payload for agent teardown.
type AgentTerminated struct {
	AgentID   string
	Reason    string
	Timestamp int64
}

func (AgentTerminated) Kind() string { return "agent_terminated" }

// StateChanged is the agents:lifecycle payload for a state-machine
// transition. Nothing in this module broadcasts it; agents recompute
// over_budget themselves on cost_recorded and child_terminated.
type StateChanged struct {
	AgentID   string
	NewState  string
	Timestamp int64
}

func (StateChanged) Kind() string { return "state_changed" }

// LogEvent is the agents:<id>:logs payload.
type LogEvent struct {
	AgentID   string
	Level     string
	Message   string
	Metadata  map[string]any
	Timestamp int64
}

func (LogEvent) Kind() string { return "log" }

// MessageEvent is the tasks:<id>:messages payload.
type MessageEvent struct {
	ID          string
	SenderID    string
	RecipientID string // empty when not addressed to one recipient (e.g. announcement)
	Content     string
	At          int64
}

func (MessageEvent) Kind() string { return "message" }

// CostRecordedEvent is the agents:<id>:costs / tasks:<id>:costs payload.
type CostRecordedEvent struct {
	AgentID string
	Amount  float64
	At      int64
}

func (CostRecordedEvent) Kind() string { return "cost_recorded" }

// ActionCompletedEvent is the actions:all payload.
type ActionCompletedEvent struct {
	AgentID       string
	ActionID      string
	ActionKind    string
	ResultSummary string
}

func (ActionCompletedEvent) Kind() string { return "action_completed" }

// TodosChangedEvent is the agents:<id>:todos payload, fired whenever a todo
// action wholesale-replaces an agent's todo list.
type TodosChangedEvent struct {
	AgentID string
	Todos   []TodoItem
}

func (TodosChangedEvent) Kind() string { return "todos_changed" }

// TodoItem mirrors the Todo item data model entry.
type TodoItem struct {
	Content string
	State   string
}
