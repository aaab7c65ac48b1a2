// Package executor implements the per-action-kind executors bound into a
// dispatch.Dispatcher's Executors table. Each file here is one
// action kind.
package executor

import (
	"context"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
)

// Orient is the self-contained no-op executor: the thought itself is the
// result, so the agent's history gains the reasoning turn without any
// external effect — orient is the one action kind that exists purely to
// let a model "think out loud" inside a decision.
func Orient(_ context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	thought, _ := params["thought"].(string)
	if thought == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "orient requires thought")
	}
	return dispatch.Result{Data: map[string]any{"thought": thought}}, nil
}
