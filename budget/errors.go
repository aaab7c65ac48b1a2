package budget

import "errors"

// ErrBudgetExceeded is returned by the Enforcer when a costly action is
// attempted while the agent is over budget.
var ErrBudgetExceeded = errors.New("budget_exceeded")

// ErrInsufficientBudget is returned by spawn_child when the parent lacks
// the available funds to cover the requested child allocation.
var ErrInsufficientBudget = errors.New("insufficient_budget")
