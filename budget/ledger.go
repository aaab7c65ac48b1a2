package budget

import "context"

// CostRecord is the append-only accounting row for one recorded cost event.
type CostRecord struct {
	AgentID  string
	TaskID   string
	CostType string
	Amount   float64
	Metadata map[string]any
	At       int64
}

// Ledger is the narrow slice of the durability contract the
// Tracker needs: summing cost records by agent or task. Any persistence.Store
// satisfies this interface structurally, so budget has no import-time
// dependency on the persistence package.
type Ledger interface {
	SumCostByAgent(ctx context.Context, agentID string) (float64, error)
	SumCostByTask(ctx context.Context, taskID string) (float64, error)
	AppendCost(ctx context.Context, record CostRecord) error
}
