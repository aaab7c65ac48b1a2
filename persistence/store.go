package persistence

import "context"

// Store is the full durability contract. It is satisfied by
// both the in-memory Memory store and the SQL store; budget.Tracker only
// ever sees the narrower budget.Ledger slice of it, so the budget package
// has no import-time dependency on persistence.
type Store interface {
	// Tasks
	SaveTask(ctx context.Context, t Task) error
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus) error
	UpdateTaskBudget(ctx context.Context, id string, n float64) error
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Agents — state blobs are opaque JSON owned by agentcore.
	UpsertAgentState(ctx context.Context, agentID string, blob []byte) error
	LoadAgent(ctx context.Context, agentID string) ([]byte, error)
	ListAgentsForTask(ctx context.Context, taskID string) ([]string, error)

	// Conversation
	AppendConversation(ctx context.Context, agentID, modelID string, entries []ConversationEntry) error
	LoadConversation(ctx context.Context, agentID string) (map[string][]ConversationEntry, error)

	// Cost — satisfies budget.Ledger.
	AppendCost(ctx context.Context, record CostRecord) error
	SumCostByAgent(ctx context.Context, agentID string) (float64, error)
	SumCostByTask(ctx context.Context, taskID string) (float64, error)
	ListCostsByTask(ctx context.Context, taskID string) ([]CostRecord, error)

	// Logs
	AppendLog(ctx context.Context, entry LogEntry) error

	// Secrets
	InsertSecret(ctx context.Context, rec SecretRecord) error
	GetSecret(ctx context.Context, name string) (SecretRecord, error)
	DeleteSecret(ctx context.Context, name string) error
	LogSecretUsage(ctx context.Context, usage SecretUsage) error
	GetCredentialByModel(ctx context.Context, modelID string) (SecretRecord, error)

	// SaveAgentWithConversation is the atomic agent+conversation write: the
	// agent state blob and the new conversation entries for one model land
	// together or not at all.
	SaveAgentWithConversation(ctx context.Context, agentID string, blob []byte, modelID string, entries []ConversationEntry) error
}

// AgentRegistrar is implemented by Store backends that need the owning task
// recorded at agent-creation time: the SQL store derives ListAgentsForTask
// from a task_id column that must exist before the first UpsertAgentState,
// and the in-memory store keeps a parallel agentID->taskID map. Callers
// creating a new agent should type-assert for this interface and call it
// once, before the agent's first state write.
type AgentRegistrar interface {
	RegisterAgent(ctx context.Context, agentID, taskID string, blob []byte) error
}
