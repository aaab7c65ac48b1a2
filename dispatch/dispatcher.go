package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/secrets"
)

// ResultSink receives an executor's (scrubbed) outcome asynchronously, one
// per dispatched action. agentcore's mailbox delivery implements this.
type ResultSink interface {
	ActionResult(actionID string, result Result, err error)
}

// Dispatcher implements the dispatch contract: classify, check
// budget, resolve secrets, run the bound executor, scrub, report.
type Dispatcher struct {
	Enforcer  *budget.Enforcer
	Executors map[action.Kind]ExecFunc

	// OnComplete, if set, is called once per dispatched action (including
	// each batch_sync/batch_async sub-action) after its executor returns,
	// with the wall-clock duration of runOne and its final error. Intended
	// for an observability package to hang Prometheus counters/histograms
	// off of without the dispatcher itself depending on prometheus.
	OnComplete func(kind action.Kind, dur time.Duration, err error)
}

// NewDispatcher creates a Dispatcher with the given per-kind executor
// table, plus the two batching executors (batch_sync, batch_async), which
// are always implemented here rather than under executor/ since they need
// to call back into the Dispatcher's own pipeline for each sub-action.
func NewDispatcher(enforcer *budget.Enforcer, executors map[action.Kind]ExecFunc) *Dispatcher {
	d := &Dispatcher{Enforcer: enforcer, Executors: map[action.Kind]ExecFunc{}}
	for k, v := range executors {
		d.Executors[k] = v
	}
	d.Executors[action.KindBatchSync] = d.batchSync
	d.Executors[action.KindBatchAsync] = d.batchAsync
	return d
}

// Dispatch runs one action to completion (sync kinds) or to its first
// acknowledgement (async kinds), reporting the final result to sink. It
// never blocks its caller past that first acknowledgement: the actual
// executor body runs in its own goroutine, a fresh single-use "Executor
// process" per call.
func (d *Dispatcher) Dispatch(ctx context.Context, actionID string, kind action.Kind, params map[string]any, scope Scope, sink ResultSink) {
	go func() {
		result, err := d.runOne(ctx, kind, params, scope)
		sink.ActionResult(actionID, result, err)
	}()
}

// runOne runs the full per-action pipeline (classify, budget check, secret
// resolution, execute, scrub) synchronously in the caller's goroutine.
// Dispatch wraps this in its own goroutine for a top-level action; the
// batch_sync/batch_async executors call it directly, once per sub-action,
// so a batched action goes through the exact same pipeline as a top-level
// one.
func (d *Dispatcher) runOne(ctx context.Context, kind action.Kind, params map[string]any, scope Scope) (result Result, err error) {
	if d.OnComplete != nil {
		start := time.Now()
		defer func() { d.OnComplete(kind, time.Since(start), err) }()
	}

	if budget.IsCostly(budget.ActionKind(kind), params) {
		decision := d.Enforcer.CheckAction(budget.ActionKind(kind), params, scope.BudgetData, scope.Spent)
		if !decision.Allowed {
			return Result{}, decision.Err
		}
	}

	resolved := params
	var usedSecrets []string
	if scope.SecretsResolver != nil {
		r, used, err := scope.SecretsResolver.ResolveParams(ctx, scope.AgentID, params)
		if err != nil {
			return Result{}, err
		}
		resolved, usedSecrets = r, used
	}

	exec, ok := d.Executors[kind]
	if !ok {
		return Result{}, errtag.New(errtag.KindInvalidParam, fmt.Sprintf("no executor registered for action kind %q", kind))
	}

	result, err = exec(ctx, kind, resolved, scope)
	result = d.scrub(ctx, scope, usedSecrets, result)
	return result, err
}

// scrub redacts every resolved secret value out of a result before it can
// reach conversation history. It re-fetches each used secret's literal
// value once more, since ResolveParams only reports names.
func (d *Dispatcher) scrub(ctx context.Context, scope Scope, usedSecrets []string, result Result) Result {
	if scope.Scrubber == nil || result.Data == nil || len(usedSecrets) == 0 || scope.Store == nil {
		return result
	}
	values := make([]string, 0, len(usedSecrets))
	for _, name := range usedSecrets {
		rec, err := scope.Store.GetSecret(ctx, name)
		if err != nil {
			continue
		}
		values = append(values, string(rec.Value))
	}
	scrubCtx := secrets.ScrubContext{Values: values}
	scrubbed := scope.Scrubber.Scrub(scrubCtx, map[string]any(result.Data))
	if m, ok := scrubbed.(map[string]any); ok {
		result.Data = m
	}
	return result
}
