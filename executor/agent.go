package executor

import (
	"context"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
)

// SpawnChild implements spawn_child: the child's allocation (if any) is
// carried by SpawnRequest and is expected to be escrowed into the parent's
// committed funds by whatever Directory implementation agentcore supplies.
func SpawnChild(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	profile, _ := params["profile"].(string)
	initialMessage, _ := params["initial_message"].(string)
	if profile == "" || initialMessage == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "spawn_child requires profile and initial_message")
	}
	if scope.Directory == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no agent directory configured")
	}

	var budgetPtr *float64
	if v, ok := toFloat(params["budget"]); ok {
		budgetPtr = &v
	}
	var capabilityGroups []string
	if raw, ok := params["capability_groups"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				capabilityGroups = append(capabilityGroups, s)
			}
		}
	}

	childID, err := scope.Directory.Spawn(ctx, dispatch.SpawnRequest{
		ParentID:         scope.AgentID,
		Profile:          profile,
		InitialMessage:   initialMessage,
		Budget:           budgetPtr,
		CapabilityGroups: capabilityGroups,
	})
	if err != nil {
		return dispatch.Result{}, err
	}

	return dispatch.Result{Data: map[string]any{"child_id": childID}}, nil
}

// DismissChild implements dismiss_child.
func DismissChild(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	childID, _ := params["child_id"].(string)
	if childID == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "dismiss_child requires child_id")
	}
	if scope.Directory == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no agent directory configured")
	}
	if !scope.Directory.IsChild(scope.AgentID, childID) {
		return dispatch.Result{}, errtag.New(errtag.KindForbidden, "child_id is not a child of this agent")
	}

	reason, _ := params["reason"].(string)
	if err := scope.Directory.Dismiss(ctx, childID, reason); err != nil {
		return dispatch.Result{}, err
	}

	return dispatch.Result{Data: map[string]any{"child_id": childID, "dismissed": true}}, nil
}

// AdjustBudget implements adjust_budget using
// budget.Tracker.ValidateBudgetDecrease's escrow check: a new_budget below
// what is already spent or committed to the child's own descendants is
// rejected rather than silently clamped (a would_violate_escrow error).
func AdjustBudget(_ context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	childID, _ := params["child_id"].(string)
	newBudget, ok := toFloat(params["new_budget"])
	if childID == "" || !ok {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "adjust_budget requires child_id and new_budget")
	}
	if scope.Directory == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no agent directory configured")
	}
	if !scope.Directory.IsChild(scope.AgentID, childID) {
		return dispatch.Result{}, errtag.New(errtag.KindForbidden, "child_id is not a child of this agent")
	}

	data, spent, ok := scope.Directory.ChildBudget(childID)
	if !ok {
		return dispatch.Result{}, errtag.New(errtag.KindNotFound, "child budget not found")
	}

	tracker := budget.NewTracker(nil)
	if err := tracker.ValidateBudgetDecrease(data, spent, newBudget); err != nil {
		return dispatch.Result{}, err
	}

	data.Allocated = &newBudget
	if err := scope.Directory.SetChildBudget(childID, data); err != nil {
		return dispatch.Result{}, err
	}

	return dispatch.Result{Data: map[string]any{"child_id": childID, "new_budget": newBudget}}, nil
}
