// Package persistence implements the durability contract for task, agent,
// conversation, cost, log, and secret rows behind one narrow interface,
// with both an in-memory backend (tests, single-process runs) and a
// database/sql backend (sqlite/postgres/mysql).
package persistence

import (
	"time"

	"github.com/shelvick/quoracle/budget"
)

// TaskStatus is the Task.status enum.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskPausing   TaskStatus = "pausing"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// IsTerminal reports whether a task in this status accepts no further
// transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the persistent task row. BudgetLimit is nil for
// the unbounded (infinity) case.
type Task struct {
	ID           string
	Prompt       string
	Status       TaskStatus
	Result       string
	ErrorMessage string
	BudgetLimit  *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationEntry is one row of a model's append-only history.
type ConversationEntry struct {
	AgentID   string
	ModelID   string
	Role      string
	Content   string
	Timestamp int64
}

// LogEntry is one append_log row.
type LogEntry struct {
	AgentID  string
	Level    string
	Message  string
	Metadata map[string]any
	At       int64
}

// SecretRecord is a stored secret value, opaque to everything but the
// secrets subsystem and the persistence backend.
type SecretRecord struct {
	Name      string
	Value     []byte
	ModelID   string // set for get_credential_by_model lookups; empty otherwise
	CreatedAt time.Time
}

// SecretUsage is one audit row written by log_secret_usage.
type SecretUsage struct {
	SecretName string
	AgentID    string
	At         int64
}

// CostRecord is re-exported so callers outside budget needn't import it
// directly; it is identical to budget.CostRecord.
type CostRecord = budget.CostRecord
