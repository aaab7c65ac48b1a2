package persistence

import (
	"context"
	"sync"
)

// Memory is an in-memory Store: one map per row kind guarded by a single
// mutex. Intended for tests and single-process demos, not production
// durability.
type Memory struct {
	mu sync.RWMutex

	tasks         map[string]Task
	agents        map[string][]byte
	agentTask     map[string]string // agentID -> taskID, for ListAgentsForTask
	conversations map[string]map[string][]ConversationEntry
	costs         []CostRecord
	logs          []LogEntry
	secrets       map[string]SecretRecord
	secretUsage   []SecretUsage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:         make(map[string]Task),
		agents:        make(map[string][]byte),
		agentTask:     make(map[string]string),
		conversations: make(map[string]map[string][]ConversationEntry),
		secrets:       make(map[string]SecretRecord),
	}
}

func (m *Memory) SaveTask(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *Memory) UpdateTaskStatus(_ context.Context, id string, status TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.Status = status
	m.tasks[id] = t
	return nil
}

func (m *Memory) UpdateTaskBudget(_ context.Context, id string, n float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.BudgetLimit = &n
	m.tasks[id] = t
	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (m *Memory) ListTasks(_ context.Context) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	for agentID, taskID := range m.agentTask {
		if taskID == id {
			delete(m.agents, agentID)
			delete(m.conversations, agentID)
			delete(m.agentTask, agentID)
		}
	}
	return nil
}

func (m *Memory) UpsertAgentState(_ context.Context, agentID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agentID] = blob
	return nil
}

func (m *Memory) LoadAgent(_ context.Context, agentID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return blob, nil
}

func (m *Memory) ListAgentsForTask(_ context.Context, taskID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for agentID, tid := range m.agentTask {
		if tid == taskID {
			out = append(out, agentID)
		}
	}
	return out, nil
}

func (m *Memory) AppendConversation(_ context.Context, agentID, modelID string, entries []ConversationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendConversationLocked(agentID, modelID, entries)
	return nil
}

func (m *Memory) appendConversationLocked(agentID, modelID string, entries []ConversationEntry) {
	byModel, ok := m.conversations[agentID]
	if !ok {
		byModel = make(map[string][]ConversationEntry)
		m.conversations[agentID] = byModel
	}
	byModel[modelID] = append(byModel[modelID], entries...)
}

func (m *Memory) LoadConversation(_ context.Context, agentID string) (map[string][]ConversationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byModel, ok := m.conversations[agentID]
	if !ok {
		return map[string][]ConversationEntry{}, nil
	}
	out := make(map[string][]ConversationEntry, len(byModel))
	for k, v := range byModel {
		cp := make([]ConversationEntry, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

func (m *Memory) AppendCost(_ context.Context, record CostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs = append(m.costs, record)
	return nil
}

func (m *Memory) SumCostByAgent(_ context.Context, agentID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum float64
	for _, c := range m.costs {
		if c.AgentID == agentID {
			sum += c.Amount
		}
	}
	return sum, nil
}

func (m *Memory) SumCostByTask(_ context.Context, taskID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum float64
	for _, c := range m.costs {
		if c.TaskID == taskID {
			sum += c.Amount
		}
	}
	return sum, nil
}

func (m *Memory) ListCostsByTask(_ context.Context, taskID string) ([]CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CostRecord
	for _, c := range m.costs {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) AppendLog(_ context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) InsertSecret(_ context.Context, rec SecretRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[rec.Name] = rec
	return nil
}

func (m *Memory) GetSecret(_ context.Context, name string) (SecretRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.secrets[name]
	if !ok {
		return SecretRecord{}, ErrSecretNotFound
	}
	return rec, nil
}

func (m *Memory) DeleteSecret(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, name)
	return nil
}

func (m *Memory) LogSecretUsage(_ context.Context, usage SecretUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secretUsage = append(m.secretUsage, usage)
	return nil
}

func (m *Memory) GetCredentialByModel(_ context.Context, modelID string) (SecretRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.secrets {
		if rec.ModelID == modelID {
			return rec, nil
		}
	}
	return SecretRecord{}, ErrSecretNotFound
}

// SaveAgentWithConversation writes the agent blob and its new conversation
// entries under one lock, giving the in-memory store the same
// agent+conversation atomicity the SQL store provides via a transaction.
func (m *Memory) SaveAgentWithConversation(_ context.Context, agentID string, blob []byte, modelID string, entries []ConversationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agentID] = blob
	m.appendConversationLocked(agentID, modelID, entries)
	return nil
}

// SetAgentTask records the task an agent belongs to, for ListAgentsForTask
// and the cascade in DeleteTask.
func (m *Memory) SetAgentTask(agentID, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentTask[agentID] = taskID
}

// RegisterAgent implements persistence.AgentRegistrar.
func (m *Memory) RegisterAgent(_ context.Context, agentID, taskID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentTask[agentID] = taskID
	m.agents[agentID] = blob
	return nil
}
