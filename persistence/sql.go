package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Database drivers: the same three dialects wired behind one
	// database/sql.DB.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id VARCHAR(255) PRIMARY KEY,
	prompt TEXT,
	status VARCHAR(32) NOT NULL,
	result TEXT,
	error_message TEXT,
	budget_limit DOUBLE PRECISION,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	agent_id VARCHAR(255) PRIMARY KEY,
	task_id VARCHAR(255) NOT NULL,
	blob TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_task_id ON agents(task_id);

CREATE TABLE IF NOT EXISTS conversation_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id VARCHAR(255) NOT NULL,
	model_id VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL,
	content TEXT,
	ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conv_agent_id ON conversation_entries(agent_id);

CREATE TABLE IF NOT EXISTS costs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id VARCHAR(255) NOT NULL,
	task_id VARCHAR(255) NOT NULL,
	cost_type VARCHAR(64) NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	metadata TEXT,
	at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_costs_agent_id ON costs(agent_id);
CREATE INDEX IF NOT EXISTS idx_costs_task_id ON costs(task_id);

CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id VARCHAR(255) NOT NULL,
	level VARCHAR(16) NOT NULL,
	message TEXT,
	metadata TEXT,
	at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS secrets (
	name VARCHAR(255) PRIMARY KEY,
	value BLOB,
	model_id VARCHAR(255),
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS secret_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	secret_name VARCHAR(255) NOT NULL,
	agent_id VARCHAR(255) NOT NULL,
	at BIGINT NOT NULL
);
`

// SQL is a database/sql-backed Store. dialect selects placeholder style and
// driver name mapping.
type SQL struct {
	db      *sql.DB
	dialect string // "sqlite", "postgres", or "mysql"
}

// OpenSQL opens a database connection for the given dialect and initializes
// the schema. dialect is "sqlite", "postgres", or "mysql"; dsn is the
// driver-specific connection string.
func OpenSQL(dialect, dsn string) (*SQL, error) {
	driverName := dialect
	if dialect == "sqlite" {
		driverName = "sqlite3"
	}
	switch dialect {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("persistence: unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", dialect, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ping %s: %w", dialect, err)
	}

	s := &SQL{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("persistence: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

// ph returns the positional placeholder for argument index n (1-based),
// "?" for sqlite/mysql and "$n" for postgres.
func (s *SQL) ph(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) SaveTask(ctx context.Context, t Task) error {
	query := fmt.Sprintf(
		`INSERT INTO tasks (id, prompt, status, result, error_message, budget_limit, created_at, updated_at)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Prompt, t.Status, t.Result, t.ErrorMessage, t.BudgetLimit, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("persistence: save task: %w", err)
	}
	return nil
}

func (s *SQL) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus) error {
	query := fmt.Sprintf(`UPDATE tasks SET status = %s, updated_at = %s WHERE id = %s`, s.ph(1), s.ph(2), s.ph(3))
	res, err := s.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("persistence: update task status: %w", err)
	}
	return noRowsAsNotFound(res, ErrTaskNotFound)
}

func (s *SQL) UpdateTaskBudget(ctx context.Context, id string, n float64) error {
	query := fmt.Sprintf(`UPDATE tasks SET budget_limit = %s, updated_at = %s WHERE id = %s`, s.ph(1), s.ph(2), s.ph(3))
	res, err := s.db.ExecContext(ctx, query, n, time.Now(), id)
	if err != nil {
		return fmt.Errorf("persistence: update task budget: %w", err)
	}
	return noRowsAsNotFound(res, ErrTaskNotFound)
}

func (s *SQL) GetTask(ctx context.Context, id string) (Task, error) {
	query := fmt.Sprintf(
		`SELECT id, prompt, status, result, error_message, budget_limit, created_at, updated_at
		 FROM tasks WHERE id = %s`, s.ph(1))
	var t Task
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Prompt, &t.Status, &t.Result, &t.ErrorMessage, &t.BudgetLimit, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("persistence: get task: %w", err)
	}
	return t, nil
}

func (s *SQL) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, prompt, status, result, error_message, budget_limit, created_at, updated_at FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("persistence: list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Prompt, &t.Status, &t.Result, &t.ErrorMessage, &t.BudgetLimit, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("persistence: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQL) DeleteTask(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: delete task begin tx: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DELETE FROM conversation_entries WHERE agent_id IN (SELECT agent_id FROM agents WHERE task_id = %s)`, s.ph(1)),
		fmt.Sprintf(`DELETE FROM agents WHERE task_id = %s`, s.ph(1)),
		fmt.Sprintf(`DELETE FROM tasks WHERE id = %s`, s.ph(1)),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("persistence: delete task: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQL) UpsertAgentState(ctx context.Context, agentID string, blob []byte) error {
	return s.upsertAgentState(ctx, s.db, agentID, blob)
}

func (s *SQL) upsertAgentState(ctx context.Context, exec execer, agentID string, blob []byte) error {
	var taskID string
	query := fmt.Sprintf(`SELECT task_id FROM agents WHERE agent_id = %s`, s.ph(1))
	err := exec.QueryRowContext(ctx, query, agentID).Scan(&taskID)
	switch {
	case err == sql.ErrNoRows:
		return fmt.Errorf("persistence: upsert agent state: %w (call RegisterAgent first)", ErrAgentNotFound)
	case err != nil:
		return fmt.Errorf("persistence: upsert agent state: %w", err)
	}

	update := fmt.Sprintf(`UPDATE agents SET blob = %s, updated_at = %s WHERE agent_id = %s`, s.ph(1), s.ph(2), s.ph(3))
	_, err = exec.ExecContext(ctx, update, string(blob), time.Now(), agentID)
	if err != nil {
		return fmt.Errorf("persistence: upsert agent state: %w", err)
	}
	return nil
}

// RegisterAgent implements persistence.AgentRegistrar: it creates the
// agents row the first time an agent is registered, recording its owning
// task. Subsequent state writes use UpsertAgentState or
// SaveAgentWithConversation.
func (s *SQL) RegisterAgent(ctx context.Context, agentID, taskID string, blob []byte) error {
	query := fmt.Sprintf(
		`INSERT INTO agents (agent_id, task_id, blob, updated_at) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	_, err := s.db.ExecContext(ctx, query, agentID, taskID, string(blob), time.Now())
	if err != nil {
		return fmt.Errorf("persistence: insert agent: %w", err)
	}
	return nil
}

func (s *SQL) LoadAgent(ctx context.Context, agentID string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT blob FROM agents WHERE agent_id = %s`, s.ph(1))
	var blob string
	err := s.db.QueryRowContext(ctx, query, agentID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: load agent: %w", err)
	}
	return []byte(blob), nil
}

func (s *SQL) ListAgentsForTask(ctx context.Context, taskID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT agent_id FROM agents WHERE task_id = %s`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list agents for task: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("persistence: scan agent id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQL) AppendConversation(ctx context.Context, agentID, modelID string, entries []ConversationEntry) error {
	return s.appendConversation(ctx, s.db, agentID, modelID, entries)
}

func (s *SQL) appendConversation(ctx context.Context, exec execer, agentID, modelID string, entries []ConversationEntry) error {
	query := fmt.Sprintf(
		`INSERT INTO conversation_entries (agent_id, model_id, role, content, ts) VALUES (%s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	for _, e := range entries {
		if _, err := exec.ExecContext(ctx, query, agentID, modelID, e.Role, e.Content, e.Timestamp); err != nil {
			return fmt.Errorf("persistence: append conversation: %w", err)
		}
	}
	return nil
}

func (s *SQL) LoadConversation(ctx context.Context, agentID string) (map[string][]ConversationEntry, error) {
	query := fmt.Sprintf(
		`SELECT model_id, role, content, ts FROM conversation_entries WHERE agent_id = %s ORDER BY id ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("persistence: load conversation: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]ConversationEntry)
	for rows.Next() {
		var modelID string
		e := ConversationEntry{AgentID: agentID}
		if err := rows.Scan(&modelID, &e.Role, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("persistence: scan conversation entry: %w", err)
		}
		e.ModelID = modelID
		out[modelID] = append(out[modelID], e)
	}
	return out, rows.Err()
}

func (s *SQL) AppendCost(ctx context.Context, record CostRecord) error {
	metaJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("persistence: marshal cost metadata: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO costs (agent_id, task_id, cost_type, amount, metadata, at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err = s.db.ExecContext(ctx, query, record.AgentID, record.TaskID, record.CostType, record.Amount, string(metaJSON), record.At)
	if err != nil {
		return fmt.Errorf("persistence: append cost: %w", err)
	}
	return nil
}

func (s *SQL) SumCostByAgent(ctx context.Context, agentID string) (float64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM costs WHERE agent_id = %s`, s.ph(1))
	var sum float64
	if err := s.db.QueryRowContext(ctx, query, agentID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("persistence: sum cost by agent: %w", err)
	}
	return sum, nil
}

func (s *SQL) SumCostByTask(ctx context.Context, taskID string) (float64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM costs WHERE task_id = %s`, s.ph(1))
	var sum float64
	if err := s.db.QueryRowContext(ctx, query, taskID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("persistence: sum cost by task: %w", err)
	}
	return sum, nil
}

func (s *SQL) ListCostsByTask(ctx context.Context, taskID string) ([]CostRecord, error) {
	query := fmt.Sprintf(`SELECT agent_id, task_id, cost_type, amount, metadata, at FROM costs WHERE task_id = %s ORDER BY at ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list costs by task: %w", err)
	}
	defer rows.Close()

	var out []CostRecord
	for rows.Next() {
		var c CostRecord
		var metaJSON string
		if err := rows.Scan(&c.AgentID, &c.TaskID, &c.CostType, &c.Amount, &metaJSON, &c.At); err != nil {
			return nil, fmt.Errorf("persistence: scan cost: %w", err)
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQL) AppendLog(ctx context.Context, entry LogEntry) error {
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("persistence: marshal log metadata: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO logs (agent_id, level, message, metadata, at) VALUES (%s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err = s.db.ExecContext(ctx, query, entry.AgentID, entry.Level, entry.Message, string(metaJSON), entry.At)
	if err != nil {
		return fmt.Errorf("persistence: append log: %w", err)
	}
	return nil
}

func (s *SQL) InsertSecret(ctx context.Context, rec SecretRecord) error {
	query := fmt.Sprintf(
		`INSERT INTO secrets (name, value, model_id, created_at) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	_, err := s.db.ExecContext(ctx, query, rec.Name, rec.Value, rec.ModelID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("persistence: insert secret: %w", err)
	}
	return nil
}

func (s *SQL) GetSecret(ctx context.Context, name string) (SecretRecord, error) {
	query := fmt.Sprintf(`SELECT name, value, model_id, created_at FROM secrets WHERE name = %s`, s.ph(1))
	var rec SecretRecord
	err := s.db.QueryRowContext(ctx, query, name).Scan(&rec.Name, &rec.Value, &rec.ModelID, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return SecretRecord{}, ErrSecretNotFound
	}
	if err != nil {
		return SecretRecord{}, fmt.Errorf("persistence: get secret: %w", err)
	}
	return rec, nil
}

func (s *SQL) DeleteSecret(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM secrets WHERE name = %s`, s.ph(1))
	_, err := s.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("persistence: delete secret: %w", err)
	}
	return nil
}

func (s *SQL) LogSecretUsage(ctx context.Context, usage SecretUsage) error {
	query := fmt.Sprintf(
		`INSERT INTO secret_usage (secret_name, agent_id, at) VALUES (%s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3))
	_, err := s.db.ExecContext(ctx, query, usage.SecretName, usage.AgentID, usage.At)
	if err != nil {
		return fmt.Errorf("persistence: log secret usage: %w", err)
	}
	return nil
}

func (s *SQL) GetCredentialByModel(ctx context.Context, modelID string) (SecretRecord, error) {
	query := fmt.Sprintf(`SELECT name, value, model_id, created_at FROM secrets WHERE model_id = %s LIMIT 1`, s.ph(1))
	var rec SecretRecord
	err := s.db.QueryRowContext(ctx, query, modelID).Scan(&rec.Name, &rec.Value, &rec.ModelID, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return SecretRecord{}, ErrSecretNotFound
	}
	if err != nil {
		return SecretRecord{}, fmt.Errorf("persistence: get credential by model: %w", err)
	}
	return rec, nil
}

// SaveAgentWithConversation writes the agent blob and its new conversation
// entries inside one transaction, satisfying the atomic-on-durable-storage
// requirement for agent state writes.
func (s *SQL) SaveAgentWithConversation(ctx context.Context, agentID string, blob []byte, modelID string, entries []ConversationEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: save agent with conversation begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsertAgentState(ctx, tx, agentID, blob); err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := s.appendConversation(ctx, tx, agentID, modelID, entries); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting the statement
// builders above run identically inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func noRowsAsNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil // driver doesn't support RowsAffected; assume success
	}
	if n == 0 {
		return notFound
	}
	return nil
}
