package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/errtag"
)

// Proposal is one model's parsed reply for a consensus round.
type Proposal struct {
	ModelID string
	Kind    action.Kind
	Params  map[string]any
	Wait    any
}

// rawProposal mirrors the JSON shape every model is instructed to return.
type rawProposal struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Wait   any            `json:"wait,omitempty"`
}

// ParseProposal parses one model's raw reply text into a Proposal. A
// malformed reply yields a tagged parse error; callers drop it from the
// round's ballot rather than treat it as a hard failure.
func ParseProposal(modelID, raw string) (Proposal, error) {
	var rp rawProposal
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return Proposal{}, errtag.Wrap(errtag.KindParseFailed, fmt.Sprintf("model %s returned unparseable reply", modelID), err)
	}
	if rp.Action == "" {
		return Proposal{}, errtag.New(errtag.KindParseFailed, fmt.Sprintf("model %s proposal missing action", modelID))
	}
	kind := action.Kind(rp.Action)
	schema, ok := action.Lookup(kind)
	if !ok {
		return Proposal{}, errtag.New(errtag.KindParseFailed, fmt.Sprintf("model %s proposed unknown action kind %q", modelID, rp.Action))
	}
	for _, req := range schema.RequiredParams {
		if _, present := rp.Params[req]; !present {
			return Proposal{}, errtag.New(errtag.KindParseFailed, fmt.Sprintf("model %s proposal for %s missing required param %q", modelID, kind, req))
		}
	}
	return Proposal{ModelID: modelID, Kind: kind, Params: rp.Params, Wait: rp.Wait}, nil
}

// ModelReply is what the model-calling layer hands back per model: either a
// raw reply string or a hard (non-parse) error such as a transport failure.
type ModelReply struct {
	ModelID string
	Raw     string
	Err     error
}

// FilterProposals parses every reply, drops parse failures and replies
// tagged as authentication/forbidden-class provider errors, then drops any
// proposal whose action the Enforcer would reject against the agent's
// current budget. It returns the surviving ballot plus the reasons anything
// was dropped, for logging.
func FilterProposals(replies []ModelReply, enforcer *budget.Enforcer, data budget.Data, spent float64) ([]Proposal, []string) {
	var ballot []Proposal
	var dropped []string

	for _, r := range replies {
		if r.Err != nil {
			if errtag.IsKind(r.Err, errtag.KindAuthenticationFailed) || errtag.IsKind(r.Err, errtag.KindForbidden) {
				dropped = append(dropped, fmt.Sprintf("model %s: provider error dropped from ballot: %v", r.ModelID, r.Err))
				continue
			}
			dropped = append(dropped, fmt.Sprintf("model %s: hard error: %v", r.ModelID, r.Err))
			continue
		}
		p, err := ParseProposal(r.ModelID, r.Raw)
		if err != nil {
			dropped = append(dropped, err.Error())
			continue
		}
		decision := enforcer.CheckAction(budget.ActionKind(p.Kind), p.Params, data, spent)
		if !decision.Allowed {
			dropped = append(dropped, fmt.Sprintf("model %s: action %s dropped, over budget: %v", p.ModelID, p.Kind, decision.Err))
			continue
		}
		ballot = append(ballot, p)
	}
	return ballot, dropped
}
