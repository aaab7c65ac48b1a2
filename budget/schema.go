// Package budget implements the hierarchical budget/escrow subsystem of
// budget tracking: Schema (pure data), Tracker (derived queries over cost
// records), and Enforcer (action permission decisions).
package budget

import "encoding/json"

// Mode classifies how an agent's allocation was established.
type Mode string

const (
	// ModeRoot is the task's root agent, whose allocation comes directly
	// from the task's budget_limit (or is unlimited, see ModeNA).
	ModeRoot Mode = "root"
	// ModeAllocated is a child agent spawned with an explicit allocation
	// escrowed from its parent's committed funds.
	ModeAllocated Mode = "allocated"
	// ModeNA means the agent has no budget tracking at all; every action
	// is permitted.
	ModeNA Mode = "na"
)

// Data is the pure, serializable budget state attached to an agent.
// Allocated is a pointer so that "no limit" (nil) and "limit of zero" are
// distinguishable, over a non-negative-or-unlimited domain.
type Data struct {
	Allocated *float64 `json:"allocated,omitempty"`
	Committed float64  `json:"committed"`
	Mode      Mode      `json:"mode"`
}

// NewRoot creates root-agent budget data with a concrete allocation.
func NewRoot(allocated float64) Data {
	return Data{Allocated: &allocated, Committed: 0, Mode: ModeRoot}
}

// NewAllocated creates child-agent budget data escrowed from a parent.
func NewAllocated(allocated float64) Data {
	return Data{Allocated: &allocated, Committed: 0, Mode: ModeAllocated}
}

// NewNA creates unlimited budget data (allocated = ∅).
func NewNA() Data {
	return Data{Allocated: nil, Committed: 0, Mode: ModeNA}
}

// AddCommitted increases committed by amount, implementing
// (spawning a child with allocation A increases the parent's committed by
// A).
func (d Data) AddCommitted(amount float64) Data {
	d.Committed += amount
	return d
}

// ReleaseCommitted decreases committed by amount, clamping at zero so
// committed never goes negative. Calling it twice for the same child
// termination must not double-release, so callers are expected to release
// exactly once per termination event — see agentcore's child_terminated
// handling.
func (d Data) ReleaseCommitted(amount float64) Data {
	d.Committed -= amount
	if d.Committed < 0 {
		d.Committed = 0
	}
	return d
}

// Available returns allocated - spent - committed, or nil if allocated is
// unbounded (mode na, or an explicitly nil allocation). This is the single
// property every budget-touching operation must preserve.
func (d Data) Available(spent float64) *float64 {
	if d.Allocated == nil {
		return nil
	}
	avail := *d.Allocated - spent - d.Committed
	return &avail
}

// Serialize encodes Data as JSON, preserving the nil/zero distinction on
// Allocated (the round-trip property).
func (d Data) Serialize() ([]byte, error) {
	return json.Marshal(d)
}

// Deserialize decodes Data from JSON produced by Serialize.
func Deserialize(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, err
	}
	return d, nil
}
