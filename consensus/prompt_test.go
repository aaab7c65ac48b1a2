package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/model"
)

func TestBuildPromptInjectsEnvelopesAtCorrectPositions(t *testing.T) {
	history := []model.Message{
		{Role: model.RoleSystem, Content: "system prompt"},
		{Role: model.RoleUser, Content: "first user turn"},
		{Role: model.RoleAssistant, Content: "assistant reply"},
		{Role: model.RoleUser, Content: "last user turn"},
	}
	env := Envelopes{
		Todos:    "todo list",
		Children: "child list",
		Budget:   "budget info",
		Lessons:  "lessons learned",
		State:    "agent state",
	}

	out := BuildPrompt(history, env)
	require.Len(t, out, 4)
	require.Contains(t, out[1].Content, "lessons learned")
	require.Contains(t, out[1].Content, "agent state")
	require.Contains(t, out[1].Content, "first user turn")
	require.Contains(t, out[3].Content, "todo list")
	require.Contains(t, out[3].Content, "child list")
	require.Contains(t, out[3].Content, "budget info")
	require.Contains(t, out[3].Content, "last user turn")

	// original history untouched
	require.Equal(t, "first user turn", history[1].Content)
}

func TestBuildPromptSingleUserTurnGetsBothEnvelopeSets(t *testing.T) {
	history := []model.Message{
		{Role: model.RoleUser, Content: "only turn"},
	}
	env := Envelopes{Todos: "todos", Lessons: "lessons"}
	out := BuildPrompt(history, env)
	require.Contains(t, out[0].Content, "todos")
	require.Contains(t, out[0].Content, "lessons")
	require.Contains(t, out[0].Content, "only turn")
}

func TestBuildPromptNoUserTurnIsUnchanged(t *testing.T) {
	history := []model.Message{{Role: model.RoleSystem, Content: "sys"}}
	out := BuildPrompt(history, Envelopes{Todos: "x"})
	require.Equal(t, history, out)
}
