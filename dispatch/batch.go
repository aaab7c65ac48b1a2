package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/shelvick/quoracle/action"
)

// subAction is one element of a batch_sync/batch_async "actions" param.
type subAction struct {
	Kind   action.Kind
	Params map[string]any
}

func parseSubActions(raw any) ([]subAction, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("dispatch: batch actions param must be a list")
	}
	if len(list) < 2 {
		return nil, fmt.Errorf("dispatch: batch requires at least 2 sub-actions, got %d", len(list))
	}
	out := make([]subAction, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dispatch: batch sub-action %d must be an object", i)
		}
		kindStr, _ := m["action"].(string)
		if kindStr == "" {
			return nil, fmt.Errorf("dispatch: batch sub-action %d missing action", i)
		}
		kind := action.Kind(kindStr)
		if !action.IsBatchable(kind) {
			return nil, fmt.Errorf("dispatch: action kind %q is not batchable", kind)
		}
		params, _ := m["params"].(map[string]any)
		out = append(out, subAction{Kind: kind, Params: params})
	}
	return out, nil
}

// batchSync runs sub-actions sequentially, stopping at the first error; the
// result is the list of individual results up to the stop point.
func (d *Dispatcher) batchSync(ctx context.Context, _ action.Kind, params map[string]any, scope Scope) (Result, error) {
	subActions, err := parseSubActions(params["actions"])
	if err != nil {
		return Result{}, err
	}

	results := make([]any, 0, len(subActions))
	for _, sa := range subActions {
		r, err := d.runOne(ctx, sa.Kind, sa.Params, scope)
		if err != nil {
			results = append(results, map[string]any{"action": string(sa.Kind), "error": err.Error()})
			return Result{Data: map[string]any{"results": results}}, err
		}
		results = append(results, map[string]any{"action": string(sa.Kind), "result": r.Data})
	}
	return Result{Data: map[string]any{"results": results}}, nil
}

// batchAsync runs sub-actions concurrently; one sub-action's failure does
// not abort the others (the batch_async semantics). Each
// sub-result would normally arrive as its own mailbox message in the full
// runtime; here all results are collected and returned together since this
// executor has no direct mailbox handle of its own.
func (d *Dispatcher) batchAsync(ctx context.Context, _ action.Kind, params map[string]any, scope Scope) (Result, error) {
	subActions, err := parseSubActions(params["actions"])
	if err != nil {
		return Result{}, err
	}

	results := make([]any, len(subActions))
	var wg sync.WaitGroup
	for i, sa := range subActions {
		wg.Add(1)
		go func(i int, sa subAction) {
			defer wg.Done()
			r, err := d.runOne(ctx, sa.Kind, sa.Params, scope)
			if err != nil {
				results[i] = map[string]any{"action": string(sa.Kind), "error": err.Error()}
				return
			}
			results[i] = map[string]any{"action": string(sa.Kind), "result": r.Data}
		}(i, sa)
	}
	wg.Wait()
	return Result{Data: map[string]any{"results": results}, Async: true}, nil
}
