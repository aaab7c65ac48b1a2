package budget

// ActionKind mirrors action.Kind without importing the action package,
// keeping budget a leaf dependency.
type ActionKind string

// costlyKinds lists the action kinds classified "costly". execute_shell is
// special-cased: it is costly only when it starts a new command
// (CheckID/Terminate absent from params).
var costlyKinds = map[ActionKind]bool{
	"spawn_child":     true,
	"call_api":        true,
	"call_mcp":        true,
	"fetch_web":       true,
	"answer_engine":   true,
	"generate_images": true,
	"execute_shell":   true,
}

// IsCostly classifies an action kind as costly or free.
// Unknown kinds default to free (fail-open for this check only — actual
// permission enforcement for unknown kinds happens elsewhere).
func IsCostly(kind ActionKind, params map[string]any) bool {
	if !costlyKinds[kind] {
		return false
	}
	if kind == "execute_shell" {
		return isNewShellCommand(params)
	}
	return true
}

func isNewShellCommand(params map[string]any) bool {
	if params == nil {
		return true
	}
	if _, hasCheck := params["check_id"]; hasCheck {
		return false
	}
	if v, ok := params["terminate"].(bool); ok && v {
		return false
	}
	return true
}

// Decision is the Enforcer's verdict on one action.
type Decision struct {
	Allowed bool
	Err     error
}

// Enforcer implements the check_action: given an action kind and
// the agent's current budget state, decide whether the action may proceed.
type Enforcer struct {
	tracker *Tracker
}

// NewEnforcer creates an Enforcer backed by the given Tracker.
func NewEnforcer(tracker *Tracker) *Enforcer {
	return &Enforcer{tracker: tracker}
}

// CheckAction implements check_action(kind, params, budget, spent).
// Non-costly actions and ModeNA budgets are always allowed;
// costly actions are blocked once available <= 0.
func (e *Enforcer) CheckAction(kind ActionKind, params map[string]any, data Data, spent float64) Decision {
	if data.Mode == ModeNA {
		return Decision{Allowed: true}
	}
	if !IsCostly(kind, params) {
		return Decision{Allowed: true}
	}
	if e.tracker.GetStatus(data, spent) == StatusOverBudget {
		return Decision{Allowed: false, Err: ErrBudgetExceeded}
	}
	return Decision{Allowed: true}
}
