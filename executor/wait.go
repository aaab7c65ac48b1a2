package executor

import (
	"context"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
)

// Wait implements the wait action kind. The timer itself
// (indefinite vs N-second, replacing any previous timer, stale-ref
// detection) is owned by the agent process, not a stateless Executor — the
// Consensus Engine's wait-parameter normalization already reduced the
// decision to a single wait value before dispatch ever sees it (see
// consensus.Engine.normalizeWait). This executor's only job is to
// acknowledge the request synchronously so the agent can arm its timer
// once the result lands in its mailbox; it performs no external effect of
// its own. wait is not on the consensus engine's self-contained-kind list,
// so its wait value is never forced off.
func Wait(_ context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	return dispatch.Result{Data: map[string]any{"wait": params["wait"]}}, nil
}
