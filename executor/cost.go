package executor

import (
	"context"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/eventbus"
)

// RecordCost implements record_cost: append a cost row and broadcast it on
// both the agent's and the task's costs topics, the
// agents:<id>:costs / tasks:<id>:costs pair.
func RecordCost(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	costType, _ := params["cost_type"].(string)
	amount, ok := toFloat(params["amount"])
	if costType == "" || !ok {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "record_cost requires cost_type and amount")
	}
	if scope.Store == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no cost ledger configured")
	}

	metadata, _ := params["metadata"].(map[string]any)
	now := time.Now().Unix()

	if err := scope.Store.AppendCost(ctx, budget.CostRecord{
		AgentID:  scope.AgentID,
		TaskID:   scope.TaskID,
		CostType: costType,
		Amount:   amount,
		Metadata: metadata,
		At:       now,
	}); err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to record cost", err)
	}

	if scope.EventBus != nil {
		event := eventbus.CostRecordedEvent{AgentID: scope.AgentID, Amount: amount, At: now}
		scope.EventBus.Broadcast(eventbus.TopicAgentCosts(scope.AgentID), event)
		scope.EventBus.Broadcast(eventbus.TopicTaskCosts(scope.TaskID), event)
	}

	return dispatch.Result{Data: map[string]any{"cost_type": costType, "amount": amount}}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
