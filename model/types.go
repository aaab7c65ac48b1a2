// Package model defines the model-call contract: the narrow interface the
// consensus engine uses to fan a prompt out to N configured models,
// independent of which provider backs any given model id.
package model

import "context"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn of conversation sent to a model.
type Message struct {
	Role      Role
	Content   string
	Timestamp int64
}

// SamplingOpts controls generation for a single call.
type SamplingOpts struct {
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for a single call, fed into cost records.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Reply is what a model call returns before the consensus engine parses it
// into a proposal.
type Reply struct {
	Content      string
	Usage        Usage
	FinishReason string
	Meta         map[string]any
}

// Client is the model-call adapter contract. Concrete provider adapters
// (Anthropic, OpenAI, Ollama, ...) are external collaborators; the core
// only depends on this interface.
type Client interface {
	// ID returns the opaque model identifier this client answers for.
	ID() string

	// Generate performs one model call. Errors are returned as *errtag.Tagged
	// values classified per errtag's taxonomy.
	Generate(ctx context.Context, messages []Message, opts SamplingOpts) (*Reply, error)
}

// EmbeddingClient produces vector embeddings for semantic_similarity merge.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
