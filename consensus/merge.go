package consensus

import (
	"context"
	"fmt"
	"sort"

	"github.com/shelvick/quoracle/action"
)

// Embedder produces an embedding vector for a string, used by the
// semantic_similarity merge rule.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Result is the outcome of merging one parameter's per-model proposals.
type Result struct {
	Value  any
	Agreed bool
}

// Merger applies the merge rules to a parameter's proposed values,
// one per model, in model order.
type Merger struct {
	Embedder Embedder
}

// NewMerger creates a Merger. embedder may be nil; only semantic_similarity
// needs it, and MergeParam returns an error if it's missing at that point.
func NewMerger(embedder Embedder) *Merger {
	return &Merger{Embedder: embedder}
}

// MergeParam merges values (one per proposing model, same order as the
// agent's configured model list) per rule.
func (m *Merger) MergeParam(ctx context.Context, rule action.ConsensusRule, values []any) (Result, error) {
	if len(values) == 0 {
		return Result{}, nil
	}
	switch rule.Name {
	case action.RuleExactMatch:
		return m.exactMatch(values), nil
	case action.RuleModeSelection:
		return m.modeSelection(values), nil
	case action.RuleSemanticSimilarity:
		return m.semanticSimilarity(ctx, rule.Tau, values)
	case action.RulePercentile:
		return m.percentile(rule.Percentile, values), nil
	case action.RuleUnionMerge:
		return m.unionMerge(values), nil
	case action.RuleStructuralMerge:
		return m.structuralMerge(values), nil
	case action.RuleMergeMaps:
		return m.mergeMaps(values), nil
	case action.RuleFirstNonNil:
		return m.firstNonNil(values), nil
	case action.RuleBatchSequenceMerge:
		return m.unionMerge(values), nil // sequence identity preserved by union's stable order
	default:
		return Result{}, fmt.Errorf("consensus: unknown merge rule %q", rule.Name)
	}
}

func key(v any) string { return fmt.Sprintf("%#v", v) }

func (m *Merger) exactMatch(values []any) Result {
	first := key(values[0])
	for _, v := range values[1:] {
		if key(v) != first {
			return Result{Agreed: false}
		}
	}
	return Result{Value: values[0], Agreed: true}
}

// modeSelection picks the most common value; ties are broken by action
// priority order when values are action.Kind strings, else by the lexically
// smallest serialized key — both deterministic tiebreaks.
func (m *Merger) modeSelection(values []any) Result {
	counts := map[string]int{}
	order := map[string]any{}
	for _, v := range values {
		k := key(v)
		counts[k]++
		if _, ok := order[k]; !ok {
			order[k] = v
		}
	}

	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		pi, pj := priorityOf(order[keys[i]]), priorityOf(order[keys[j]])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return Result{Value: order[keys[0]], Agreed: true}
}

func priorityOf(v any) int {
	s, ok := v.(string)
	if !ok {
		return len(action.AllKinds) + 1
	}
	if p, ok := action.Priority[action.Kind(s)]; ok {
		return p
	}
	return len(action.AllKinds) + 1
}

func (m *Merger) semanticSimilarity(ctx context.Context, tau float64, values []any) (Result, error) {
	if m.Embedder == nil {
		return Result{}, fmt.Errorf("consensus: semantic_similarity rule requires an embedder")
	}
	vecs := make([][]float64, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return Result{}, fmt.Errorf("consensus: semantic_similarity requires string proposals, got %T", v)
		}
		vec, err := m.Embedder.Embed(ctx, s)
		if err != nil {
			return Result{}, fmt.Errorf("consensus: embed proposal: %w", err)
		}
		vecs[i] = vec
	}
	if !AllPairsAboveThreshold(vecs, tau) {
		return Result{Agreed: false}, nil
	}
	idx := Medoid(vecs)
	return Result{Value: values[idx], Agreed: true}, nil
}

func (m *Merger) percentile(p float64, values []any) Result {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		n, ok := toFloat(v)
		if !ok {
			return Result{Agreed: false}
		}
		nums = append(nums, n)
	}
	sort.Float64s(nums)
	idx := int(p / 100 * float64(len(nums)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(nums) {
		idx = len(nums) - 1
	}
	return Result{Value: nums[idx], Agreed: true}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// unionMerge concatenates every proposal's elements, deduplicating by
// serialized value while preserving first-seen (model) order.
func (m *Merger) unionMerge(values []any) Result {
	seen := map[string]bool{}
	var out []any
	for _, v := range values {
		items, ok := v.([]any)
		if !ok {
			items = []any{v}
		}
		for _, item := range items {
			k := key(item)
			if !seen[k] {
				seen[k] = true
				out = append(out, item)
			}
		}
	}
	return Result{Value: out, Agreed: true}
}

// structuralMerge picks the value with the most information: for strings,
// the longest; for everything else it falls back to mergeMaps/unionMerge by
// shape. There is no single canonical "structural merge" definition in the
// corpus; this is the concrete, deterministic choice adopted here.
func (m *Merger) structuralMerge(values []any) Result {
	switch values[0].(type) {
	case string:
		best := values[0].(string)
		for _, v := range values[1:] {
			if s, ok := v.(string); ok && len(s) > len(best) {
				best = s
			}
		}
		return Result{Value: best, Agreed: true}
	case map[string]any:
		return m.mergeMaps(values)
	case []any:
		return m.unionMerge(values)
	default:
		return m.firstNonNil(values)
	}
}

// mergeMaps deep-merges map proposals key by key; later models in the
// configured model order win on conflicting scalar keys, nested maps merge
// recursively.
func (m *Merger) mergeMaps(values []any) Result {
	out := map[string]any{}
	for _, v := range values {
		mv, ok := v.(map[string]any)
		if !ok {
			continue
		}
		mergeInto(out, mv)
	}
	return Result{Value: out, Agreed: true}
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if existing, ok := dst[k].(map[string]any); ok {
			if incoming, ok := v.(map[string]any); ok {
				mergeInto(existing, incoming)
				continue
			}
		}
		dst[k] = v
	}
}

func (m *Merger) firstNonNil(values []any) Result {
	for _, v := range values {
		if v != nil {
			return Result{Value: v, Agreed: true}
		}
	}
	return Result{Value: nil, Agreed: true}
}
