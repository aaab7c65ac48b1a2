// Package agentcore implements the per-agent state machine: one goroutine
// per agent, an inbound mailbox channel, and the stimuli handlers that keep
// history, children, todos, and budget_data consistent before any action
// reaches the Dispatcher.
package agentcore

import (
	"encoding/json"
	"fmt"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/model"
)

// PendingAction exists from the moment the dispatcher is called until the
// result has landed in history (sync) or, for async actions, until the
// check/terminate result arrives.
type PendingAction struct {
	ActionID  string
	Type      action.Kind
	Params    map[string]any
	Timestamp int64
	Acked     bool
	AsyncRef  string
	// Wait carries the consensus decision's wait value at dispatch time, so
	// onActionResult knows whether to arm a wait timer instead of
	// scheduling the next consensus round.
	Wait any
}

// AgentState is the full mutable state blob owned exclusively by one Agent
// goroutine.
type AgentState struct {
	AgentID          string
	TaskID           string
	ParentID         string
	Models           []string
	CapabilityGroups []string
	Profile          string

	ConversationHistories map[string][]model.Message
	PendingActions        map[string]PendingAction
	Children              []string
	Todos                 []eventbus.TodoItem
	BudgetData            budget.Data
	OverBudget            bool
}

// NewAgentState creates a fresh agent state with empty history/children/
// todos and no pending actions.
func NewAgentState(agentID, taskID, parentID, profile string, models, capabilityGroups []string, budgetData budget.Data) *AgentState {
	histories := make(map[string][]model.Message, len(models))
	for _, m := range models {
		histories[m] = []model.Message{}
	}
	return &AgentState{
		AgentID:               agentID,
		TaskID:                taskID,
		ParentID:              parentID,
		Models:                models,
		CapabilityGroups:      capabilityGroups,
		Profile:               profile,
		ConversationHistories: histories,
		PendingActions:        make(map[string]PendingAction),
		BudgetData:            budgetData,
	}
}

// Validate checks the structural invariants an agent state must satisfy,
// as one top-level Validate method covering the whole serializable type.
func (s *AgentState) Validate() error {
	if s.AgentID == "" {
		return fmt.Errorf("agentcore: agent_id is required")
	}
	if s.TaskID == "" {
		return fmt.Errorf("agentcore: task_id is required")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("agentcore: agent %s must have at least one model", s.AgentID)
	}
	for _, t := range s.Todos {
		switch t.State {
		case "todo", "pending", "done":
		default:
			return fmt.Errorf("agentcore: agent %s has todo with invalid state %q", s.AgentID, t.State)
		}
	}
	if s.BudgetData.Committed < 0 {
		return fmt.Errorf("agentcore: agent %s has negative committed budget", s.AgentID)
	}
	return nil
}

// Serialize encodes the state as JSON for the persistence layer's opaque
// agent blob, mirroring budget.Data's Serialize/Deserialize pair.
func (s *AgentState) Serialize() ([]byte, error) {
	return json.Marshal(s)
}

// DeserializeState decodes an agent blob produced by Serialize.
func DeserializeState(raw []byte) (*AgentState, error) {
	var s AgentState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// appendHistory appends one turn to every model's conversation history.
func (s *AgentState) appendHistory(role model.Role, content string) {
	for _, m := range s.Models {
		s.ConversationHistories[m] = append(s.ConversationHistories[m], model.Message{Role: role, Content: content})
	}
}

// appendHistoryFor appends one turn to a single model's history. The agent
// loop itself only uses appendHistory, which keeps every model in lockstep.
func (s *AgentState) appendHistoryFor(modelID string, role model.Role, content string) {
	s.ConversationHistories[modelID] = append(s.ConversationHistories[modelID], model.Message{Role: role, Content: content})
}

// recomputeOverBudget recomputes over_budget from the tracker's status,
// called from cost_recorded and child_terminated handling.
func (s *AgentState) recomputeOverBudget(tracker *budget.Tracker, spent float64) {
	s.OverBudget = tracker.GetStatus(s.BudgetData, spent) == budget.StatusOverBudget
}
