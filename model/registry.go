package model

import (
	"fmt"

	"github.com/shelvick/quoracle/registry"
)

// Registry holds the configured model clients, keyed by model id. An
// agent's `models` ordered set is resolved against this
// registry at the start of each consensus round.
type Registry struct {
	*registry.Base[Client]
}

// NewRegistry creates an empty model client registry.
func NewRegistry() *Registry {
	return &Registry{Base: registry.New[Client]()}
}

// Resolve looks up every id in order, failing fast on the first miss so a
// misconfigured profile is caught before a consensus round starts rather
// than silently running with fewer models than configured.
func (r *Registry) Resolve(ids []string) ([]Client, error) {
	clients := make([]Client, 0, len(ids))
	for _, id := range ids {
		c, ok := r.Get(id)
		if !ok {
			return nil, fmt.Errorf("model registry: unknown model id %q", id)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// EmbeddingRegistry holds configured embedding clients, keyed by id.
type EmbeddingRegistry struct {
	*registry.Base[EmbeddingClient]
}

// NewEmbeddingRegistry creates an empty embedding client registry.
func NewEmbeddingRegistry() *EmbeddingRegistry {
	return &EmbeddingRegistry{Base: registry.New[EmbeddingClient]()}
}
