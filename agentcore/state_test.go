package agentcore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/model"
)

func TestNewAgentStateDefaults(t *testing.T) {
	s := NewAgentState("a1", "t1", "", "default", []string{"m1", "m2"}, nil, budget.NewRoot(100))
	require.NoError(t, s.Validate())
	require.Empty(t, s.Children)
	require.Empty(t, s.PendingActions)
	require.Contains(t, s.ConversationHistories, "m1")
}

func TestValidateRejectsMissingFields(t *testing.T) {
	s := NewAgentState("", "t1", "", "default", []string{"m1"}, nil, budget.NewNA())
	require.Error(t, s.Validate())

	s2 := NewAgentState("a1", "t1", "", "default", nil, nil, budget.NewNA())
	require.Error(t, s2.Validate())

	s3 := NewAgentState("a1", "t1", "", "default", []string{"m1"}, nil, budget.NewNA())
	s3.Todos = []eventbus.TodoItem{{Content: "x", State: "bogus"}}
	require.Error(t, s3.Validate())

	s4 := NewAgentState("a1", "t1", "", "default", []string{"m1"}, nil, budget.NewAllocated(10))
	s4.BudgetData.Committed = -1
	require.Error(t, s4.Validate())
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	s := NewAgentState("a1", "t1", "p1", "default", []string{"m1", "m2"}, []string{"shell"}, budget.NewAllocated(30))
	s.appendHistory(model.RoleUser, "hello")
	s.Children = append(s.Children, "c1")
	s.Todos = append(s.Todos, eventbus.TodoItem{Content: "do thing", State: "todo"})
	s.PendingActions["act-1"] = PendingAction{ActionID: "act-1", Type: "orient", Wait: nil}

	raw, err := s.Serialize()
	require.NoError(t, err)

	got, err := DeserializeState(raw)
	require.NoError(t, err)
	require.Equal(t, s.AgentID, got.AgentID)
	require.Equal(t, s.ParentID, got.ParentID)
	require.Equal(t, s.Children, got.Children)
	require.Equal(t, s.Todos, got.Todos)
	require.Equal(t, s.ConversationHistories["m1"], got.ConversationHistories["m1"])
	require.Equal(t, s.ConversationHistories["m2"], got.ConversationHistories["m2"])
	require.Contains(t, got.PendingActions, "act-1")
	require.NoError(t, got.Validate())
}

func TestAppendHistoryKeepsModelsInLockstep(t *testing.T) {
	s := NewAgentState("a1", "t1", "", "default", []string{"m1", "m2", "m3"}, nil, budget.NewNA())
	s.appendHistory(model.RoleUser, "turn one")
	for _, m := range s.Models {
		require.Len(t, s.ConversationHistories[m], 1)
		require.Equal(t, "turn one", s.ConversationHistories[m][0].Content)
	}

	s.appendHistoryFor("m1", model.RoleAssistant, "only m1 sees this")
	require.Len(t, s.ConversationHistories["m1"], 2)
	require.Len(t, s.ConversationHistories["m2"], 1)
}

func TestRecomputeOverBudget(t *testing.T) {
	ledger := newFakeLedger()
	tracker := budget.NewTracker(ledger)

	s := NewAgentState("a1", "t1", "", "default", []string{"m1"}, nil, budget.NewRoot(100))
	s.recomputeOverBudget(tracker, 30)
	require.False(t, s.OverBudget)

	s.recomputeOverBudget(tracker, 150)
	require.True(t, s.OverBudget)
}
