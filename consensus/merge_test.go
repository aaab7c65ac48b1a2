package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/action"
)

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	return f.vectors[text], nil
}

func TestMergeExactMatch(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.ExactMatch(), []any{"parent", "parent", "parent"})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	require.Equal(t, "parent", r.Value)

	r, err = m.MergeParam(context.Background(), action.ExactMatch(), []any{"parent", "children"})
	require.NoError(t, err)
	require.False(t, r.Agreed)
}

func TestMergeModeSelectionMajority(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.ModeSelection(), []any{"send_message", "send_message", "wait"})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	require.Equal(t, "send_message", r.Value)
}

func TestMergeModeSelectionTieBreaksByPriority(t *testing.T) {
	m := NewMerger(nil)
	// orient(1) vs spawn_child(22): tie of one vote each, orient wins.
	r, err := m.MergeParam(context.Background(), action.ModeSelection(), []any{"spawn_child", "orient"})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	require.Equal(t, "orient", r.Value)
}

func TestMergeSemanticSimilarityAgrees(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"a": {1, 0},
		"b": {0.99, 0.01},
		"c": {0.98, 0.02},
	}}
	m := NewMerger(embedder)
	r, err := m.MergeParam(context.Background(), action.SemanticSimilarity(0.9), []any{"a", "b", "c"})
	require.NoError(t, err)
	require.True(t, r.Agreed)
}

func TestMergeSemanticSimilarityDisagrees(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"a": {1, 0},
		"b": {0, 1},
	}}
	m := NewMerger(embedder)
	r, err := m.MergeParam(context.Background(), action.SemanticSimilarity(0.85), []any{"a", "b"})
	require.NoError(t, err)
	require.False(t, r.Agreed)
}

func TestMergePercentile(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.Percentile(50), []any{10.0, 20.0, 30.0})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	require.Equal(t, 20.0, r.Value)
}

func TestMergeUnionMerge(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.UnionMerge(), []any{
		[]any{"a", "b"},
		[]any{"b", "c"},
	})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	require.Equal(t, []any{"a", "b", "c"}, r.Value)
}

func TestMergeMapsDeepMerge(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.MergeMaps(), []any{
		map[string]any{"x": 1, "nested": map[string]any{"a": 1}},
		map[string]any{"y": 2, "nested": map[string]any{"b": 2}},
	})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	merged := r.Value.(map[string]any)
	require.Equal(t, 1, merged["x"])
	require.Equal(t, 2, merged["y"])
	nested := merged["nested"].(map[string]any)
	require.Equal(t, 1, nested["a"])
	require.Equal(t, 2, nested["b"])
}

func TestMergeFirstNonNil(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.FirstNonNil(), []any{nil, nil, "value"})
	require.NoError(t, err)
	require.True(t, r.Agreed)
	require.Equal(t, "value", r.Value)
}

func TestMergeStructuralMergePicksLongestString(t *testing.T) {
	m := NewMerger(nil)
	r, err := m.MergeParam(context.Background(), action.StructuralMerge(), []any{"short", "much longer answer"})
	require.NoError(t, err)
	require.Equal(t, "much longer answer", r.Value)
}
