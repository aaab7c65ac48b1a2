package agentcore

import (
	"context"
	"sync"

	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/consensus"
	"github.com/shelvick/quoracle/model"
)

// fakeLedger is a minimal in-memory budget.Ledger for agentcore tests,
// mirroring budget's own memoryLedger test double.
type fakeLedger struct {
	mu      sync.Mutex
	byAgent map[string]float64
	byTask  map[string]float64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byAgent: map[string]float64{}, byTask: map[string]float64{}}
}

func (l *fakeLedger) SumCostByAgent(_ context.Context, agentID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byAgent[agentID], nil
}

func (l *fakeLedger) SumCostByTask(_ context.Context, taskID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byTask[taskID], nil
}

func (l *fakeLedger) AppendCost(_ context.Context, r budget.CostRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byAgent[r.AgentID] += r.Amount
	l.byTask[r.TaskID] += r.Amount
	return nil
}

// scriptedCaller is a consensus.Caller test double that replies with the
// same scripted body every round it is asked, mirroring consensus's own
// scriptedCaller test helper.
type scriptedCaller struct {
	id    string
	reply string
}

func (c *scriptedCaller) ID() string { return c.id }

func (c *scriptedCaller) Generate(_ context.Context, _ []model.Message, _ model.SamplingOpts) (*model.Reply, error) {
	return &model.Reply{Content: c.reply}, nil
}

// newTestEngineFactory returns an Environment.ConsensusEngine func that
// always resolves every configured model id to a scriptedCaller returning
// reply, regardless of profile.
func newTestEngineFactory(tracker *budget.Tracker, reply string) func(profile string, models []string) *consensus.Engine {
	return func(_ string, models []string) *consensus.Engine {
		callers := make([]consensus.Caller, len(models))
		for i, id := range models {
			callers[i] = &scriptedCaller{id: id, reply: reply}
		}
		return &consensus.Engine{
			Models:              callers,
			Merger:              consensus.NewMerger(nil),
			Enforcer:            budget.NewEnforcer(tracker),
			Schedule:            consensus.DefaultSchedule,
			MaxRefinementRounds: 4,
		}
	}
}
