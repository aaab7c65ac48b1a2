package agentcore

import (
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/consensus"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/model"
	"github.com/shelvick/quoracle/persistence"
	"github.com/shelvick/quoracle/secrets"
)

// Environment is the single immutable "opts bag" shared by every agent:
// every injected collaborator an Agent or Executor needs, constructed once
// per deployment (or once per test case) and threaded to every agent at
// creation.
type Environment struct {
	EventBus        *eventbus.Bus
	Store           persistence.Store
	SecretsResolver secrets.Resolver
	Scrubber        secrets.Scrubber
	Dispatcher      *dispatch.Dispatcher
	Tracker         *budget.Tracker
	Models          map[string]consensus.Caller
	Embedder        model.EmbeddingClient
	ConsensusEngine func(profile string, models []string) *consensus.Engine
	Registry        *AgentRegistry

	// Mailbox buffer size for each agent's inbound channel; defaults to 32
	// when zero (see NewAgent).
	MailboxSize int

	Warn func(format string, args ...any)
}

func (e *Environment) warn(format string, args ...any) {
	if e.Warn != nil {
		e.Warn(format, args...)
	}
}
