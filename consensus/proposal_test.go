package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/errtag"
)

func TestParseProposalValid(t *testing.T) {
	p, err := ParseProposal("m1", `{"action":"orient","params":{"thought":"hi"}}`)
	require.NoError(t, err)
	require.Equal(t, action.KindOrient, p.Kind)
	require.Equal(t, "hi", p.Params["thought"])
}

func TestParseProposalMalformedJSON(t *testing.T) {
	_, err := ParseProposal("m1", `not json`)
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindParseFailed))
}

func TestParseProposalUnknownKind(t *testing.T) {
	_, err := ParseProposal("m1", `{"action":"nonexistent","params":{}}`)
	require.Error(t, err)
}

func TestParseProposalMissingRequiredParam(t *testing.T) {
	_, err := ParseProposal("m1", `{"action":"orient","params":{}}`)
	require.Error(t, err)
}

func TestFilterProposalsDropsAuthErrorsAndOverBudget(t *testing.T) {
	tracker := budget.NewTracker(nil)
	enforcer := budget.NewEnforcer(tracker)
	data := budget.NewRoot(10)

	replies := []ModelReply{
		{ModelID: "m1", Raw: `{"action":"orient","params":{"thought":"fine"}}`},
		{ModelID: "m2", Err: errtag.New(errtag.KindAuthenticationFailed, "bad key")},
		{ModelID: "m3", Raw: `{"action":"spawn_child","params":{"profile":"p","initial_message":"go"}}`},
	}

	ballot, dropped := FilterProposals(replies, enforcer, data, 20) // spent 20 > allocated 10: over budget
	require.Len(t, ballot, 1)
	require.Equal(t, action.KindOrient, ballot[0].Kind)
	require.Len(t, dropped, 2)
}
