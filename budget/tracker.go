package budget

import (
	"context"
	"fmt"
)

// Status classifies an agent's current budget health.
type Status string

const (
	StatusOK          Status = "ok"
	StatusWarning     Status = "warning"
	StatusOverBudget  Status = "over_budget"
	StatusNA          Status = "na"
	warningThreshold         = 0.20 // warning at <= 20% of allocated remaining
)

// Tracker answers derived queries against cost records: spent, available,
// and health status, reading current usage and comparing it against a
// configured limit via a pluggable Ledger.
type Tracker struct {
	ledger Ledger
}

// NewTracker creates a Tracker backed by the given cost ledger.
func NewTracker(ledger Ledger) *Tracker {
	return &Tracker{ledger: ledger}
}

// GetSpent sums cost records for one agent.
func (t *Tracker) GetSpent(ctx context.Context, agentID string) (float64, error) {
	return t.ledger.SumCostByAgent(ctx, agentID)
}

// GetSpentForTask sums cost records for an entire task.
func (t *Tracker) GetSpentForTask(ctx context.Context, taskID string) (float64, error) {
	return t.ledger.SumCostByTask(ctx, taskID)
}

// CalculateAvailable returns allocated - spent - committed, or nil if the
// budget is unbounded.
func (t *Tracker) CalculateAvailable(data Data, spent float64) *float64 {
	return data.Available(spent)
}

// GetStatus classifies current budget health. warning fires at <= 20% of
// allocated remaining; over_budget fires when available <= 0.
func (t *Tracker) GetStatus(data Data, spent float64) Status {
	if data.Mode == ModeNA || data.Allocated == nil {
		return StatusNA
	}
	avail := data.Available(spent)
	if avail == nil {
		return StatusNA
	}
	if *avail <= 0 {
		return StatusOverBudget
	}
	if *data.Allocated <= 0 {
		return StatusWarning
	}
	if *avail/(*data.Allocated) <= warningThreshold {
		return StatusWarning
	}
	return StatusOK
}

// HasAvailable reports whether at least `required` funds remain. Budgets in
// ModeNA always have funds available.
func (t *Tracker) HasAvailable(data Data, spent float64, required float64) bool {
	avail := data.Available(spent)
	if avail == nil {
		return true
	}
	return *avail >= required
}

// ValidateBudgetDecrease rejects lowering allocated below spent+committed,
// returning a structured would_violate_escrow error carrying
// {spent, committed, minimum, requested}.
func (t *Tracker) ValidateBudgetDecrease(data Data, spent float64, newAllocated float64) error {
	minimum := spent + data.Committed
	if newAllocated < minimum {
		return &EscrowViolationError{
			Spent:     spent,
			Committed: data.Committed,
			Minimum:   minimum,
			Requested: newAllocated,
		}
	}
	return nil
}

// EscrowViolationError is returned by ValidateBudgetDecrease and by
// adjust_budget when a requested new_budget would cut below what is already
// spent or escrowed to live children.
type EscrowViolationError struct {
	Spent     float64
	Committed float64
	Minimum   float64
	Requested float64
}

func (e *EscrowViolationError) Error() string {
	return fmt.Sprintf(
		"would_violate_escrow: requested %.4f is below minimum %.4f (spent %.4f + committed %.4f)",
		e.Requested, e.Minimum, e.Spent, e.Committed,
	)
}
