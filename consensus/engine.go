package consensus

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/model"
)

// selfContainedKinds complete without any external responder; a proposed
// wait=true on one of these is auto-corrected to false.
// batch_sync is included only when every one of its sub-actions is itself
// self-contained; Engine checks that case specially.
var selfContainedKinds = map[action.Kind]bool{
	action.KindOrient:         true,
	action.KindTodo:           true,
	action.KindFileRead:       true,
	action.KindFileWrite:      true,
	action.KindAdjustBudget:   true,
	action.KindGenerateSecret: true,
	action.KindSearchSecrets:  true,
	action.KindLearnSkills:    true,
	action.KindCreateSkill:    true,
}

// Decision is the consensus engine's single executable output for a round.
type Decision struct {
	Action action.Kind
	Params map[string]any
	Wait   any
}

// ErrConsensusFailed is returned when no ballot survives filtering, or
// refinement exhausts max_refinement_rounds without full per-parameter
// agreement.
type ErrConsensusFailed struct {
	Rounds        int
	Disagreements map[string][]any
}

func (e *ErrConsensusFailed) Error() string {
	if len(e.Disagreements) == 0 {
		return fmt.Sprintf("consensus: no model produced a usable proposal after %d round(s)", e.Rounds)
	}
	return fmt.Sprintf("consensus: failed to agree after %d round(s), disagreeing params: %v", e.Rounds, paramNames(e.Disagreements))
}

func paramNames(m map[string][]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Caller is the narrow model-invocation contract the Engine fans a round
// out over; model.Client satisfies it directly.
type Caller interface {
	ID() string
	Generate(ctx context.Context, messages []model.Message, opts model.SamplingOpts) (*model.Reply, error)
}

// Engine drives one or more consensus rounds to a single Decision.
// Concurrent per-model fan-out uses an errgroup so a single model's
// failure never blocks the others.
type Engine struct {
	Models              []Caller
	Merger              *Merger
	Enforcer            *budget.Enforcer
	Schedule            Schedule
	MaxRefinementRounds int // 0-9, default 4
	Warn                func(format string, args ...any)
}

func (e *Engine) warn(format string, args ...any) {
	if e.Warn != nil {
		e.Warn(format, args...)
	}
}

// Run executes the full consensus procedure: an initial round, then up to
// MaxRefinementRounds refinements, against the given history/envelopes and
// the acting agent's current budget state.
func (e *Engine) Run(ctx context.Context, history []model.Message, env Envelopes, data budget.Data, spent float64) (Decision, error) {
	maxRounds := e.MaxRefinementRounds + 1
	working := make([]model.Message, len(history))
	copy(working, history)

	var lastDisagreements map[string][]any

	for round := 0; round < maxRounds; round++ {
		temp := e.Schedule.TemperatureSchedule(maxRounds, round)
		prompt := BuildPrompt(working, env)

		replies := e.fanOut(ctx, prompt, temp)
		ballot, dropped := FilterProposals(replies, e.Enforcer, data, spent)
		for _, reason := range dropped {
			e.warn("consensus: round %d: %s", round, reason)
		}

		if len(ballot) == 0 {
			lastDisagreements = nil
			working = append(working, ReconciliationDirective(map[string][]any{"action": {"(no model returned a usable proposal)"}}))
			continue
		}

		kind, kindAgreed := e.mergeKind(ballot)
		if !kindAgreed {
			lastDisagreements = map[string][]any{"action": kindValues(ballot)}
			working = append(working, ReconciliationDirective(lastDisagreements))
			continue
		}

		decision, disagreements, err := e.mergeParams(ctx, kind, ballot)
		if err != nil {
			return Decision{}, err
		}
		if len(disagreements) > 0 {
			lastDisagreements = disagreements
			working = append(working, ReconciliationDirective(disagreements))
			continue
		}

		e.normalizeWait(&decision)
		return decision, nil
	}

	return Decision{}, &ErrConsensusFailed{Rounds: maxRounds, Disagreements: lastDisagreements}
}

func kindValues(ballot []Proposal) []any {
	out := make([]any, len(ballot))
	for i, p := range ballot {
		out[i] = string(p.Kind)
	}
	return out
}

// mergeKind decides which action kind the round's decision will be, via
// mode_selection with the action-priority tiebreak (the priority table
// exists expressly to break vote ties).
func (e *Engine) mergeKind(ballot []Proposal) (action.Kind, bool) {
	result := e.Merger.modeSelection(kindValues(ballot))
	if !result.Agreed {
		return "", false
	}
	s, _ := result.Value.(string)
	return action.Kind(s), true
}

// mergeParams merges every declared parameter of kind across the subset of
// the ballot that proposed kind, returning the disagreeing parameter names
// (with their raw per-model values) when a merge fails to reach agreement.
func (e *Engine) mergeParams(ctx context.Context, kind action.Kind, ballot []Proposal) (Decision, map[string][]any, error) {
	schema, ok := action.Lookup(kind)
	if !ok {
		return Decision{}, nil, fmt.Errorf("consensus: chosen kind %q has no schema", kind)
	}

	var matching []Proposal
	for _, p := range ballot {
		if p.Kind == kind {
			matching = append(matching, p)
		}
	}

	params := map[string]any{}
	disagreements := map[string][]any{}
	var wait any

	for name := range schema.ParamTypes {
		var values []any
		var present bool
		for _, p := range matching {
			if v, ok := p.Params[name]; ok {
				values = append(values, v)
				present = true
			}
		}
		if !present {
			continue
		}
		rule, ok := schema.ConsensusRules[name]
		if !ok {
			continue
		}
		result, err := e.Merger.MergeParam(ctx, rule, values)
		if err != nil {
			return Decision{}, nil, err
		}
		if !result.Agreed {
			disagreements[name] = values
			continue
		}
		params[name] = result.Value
	}

	for _, p := range matching {
		if p.Wait != nil {
			wait = p.Wait
			break
		}
	}

	return Decision{Action: kind, Params: params, Wait: wait}, disagreements, nil
}

// normalizeWait applies the three wait-parameter rules in order:
// coerce string booleans, derive response-level wait from params.wait for
// kind=wait, then force-disable wait on self-contained kinds (including a
// batch_sync whose sub-actions are all self-contained).
func (e *Engine) normalizeWait(d *Decision) {
	if s, ok := d.Wait.(string); ok {
		switch s {
		case "true":
			d.Wait = true
		case "false":
			d.Wait = false
		}
	}

	if d.Action == action.KindWait {
		if w, ok := d.Params["wait"]; ok {
			d.Wait = w
		}
	}

	selfContained := selfContainedKinds[d.Action]
	if d.Action == action.KindBatchSync {
		subs, _ := d.Params["actions"].([]any)
		selfContained = len(subs) > 0
		for _, sub := range subs {
			m, _ := sub.(map[string]any)
			kind, _ := m["action"].(string)
			if !selfContainedKinds[action.Kind(kind)] {
				selfContained = false
			}
		}
	}
	if selfContained {
		if b, ok := d.Wait.(bool); ok && b {
			e.warn("consensus: wait=true on self-contained action %q auto-corrected to false", d.Action)
			d.Wait = false
		}
	}
}

// fanOut calls every configured model concurrently at the given
// temperature, collecting a ModelReply per model regardless of individual
// failure — a per-model error is a soft ballot-filtering concern, not a
// hard failure of the round itself, so errgroup's cancellation-on-
// first-error is deliberately not used here.
func (e *Engine) fanOut(ctx context.Context, prompt []model.Message, temp float64) []ModelReply {
	replies := make([]ModelReply, len(e.Models))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range e.Models {
		i, m := i, m
		g.Go(func() error {
			reply, err := m.Generate(gctx, prompt, model.SamplingOpts{Temperature: temp})
			if err != nil {
				replies[i] = ModelReply{ModelID: m.ID(), Err: err}
				return nil
			}
			replies[i] = ModelReply{ModelID: m.ID(), Raw: reply.Content}
			return nil
		})
	}
	_ = g.Wait()
	return replies
}
