package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct{ id string }

func (f fakeClient) ID() string { return f.id }
func (f fakeClient) Generate(context.Context, []Message, SamplingOpts) (*Reply, error) {
	return &Reply{Content: f.id}, nil
}
func (f fakeClient) Embed(context.Context, string) ([]float64, error) {
	return []float64{1}, nil
}

func TestRegistryResolveOrdersAndFailsFast(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", fakeClient{id: "a"}))
	require.NoError(t, r.Register("b", fakeClient{id: "b"}))

	clients, err := r.Resolve([]string{"b", "a"})
	require.NoError(t, err)
	require.Equal(t, []Client{fakeClient{id: "b"}, fakeClient{id: "a"}}, clients)

	_, err = r.Resolve([]string{"a", "missing"})
	require.Error(t, err)
}

func TestEmbeddingRegistryRoundTrip(t *testing.T) {
	r := NewEmbeddingRegistry()
	require.NoError(t, r.Register("e1", fakeClient{id: "e1"}))
	c, ok := r.Get("e1")
	require.True(t, ok)
	require.Equal(t, "e1", c.ID())
}
