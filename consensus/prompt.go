package consensus

import (
	"fmt"
	"strings"

	"github.com/shelvick/quoracle/model"
)

// Envelopes holds the context blocks injected into a model's prompt each
// round. Each is rendered as an XML-ish tagged block and prepended to the
// message it targets, as named slots merged onto a message rather than
// templated inline.
type Envelopes struct {
	Todos    string // prepended to the last user message
	Children string // prepended to the last user message
	Budget   string // prepended to the last user message
	Lessons  string // prepended to the first user message
	State    string // prepended to the first user message
}

func wrap(tag, body string) string {
	if body == "" {
		return ""
	}
	return fmt.Sprintf("<%s>\n%s\n</%s>\n", tag, body, tag)
}

// lastEnvelope renders the three envelopes prepended to the last user turn.
func (e Envelopes) lastEnvelope() string {
	return wrap("todos", e.Todos) + wrap("children", e.Children) + wrap("budget", e.Budget)
}

// firstEnvelope renders the two envelopes prepended to the first user turn.
func (e Envelopes) firstEnvelope() string {
	return wrap("lessons", e.Lessons) + wrap("state", e.State)
}

// BuildPrompt composes one model's message history for a round: history is
// copied, then the first and last user-role messages are prefixed with
// their respective envelopes. A conversation with no user turn at all is
// returned unchanged — there is nowhere to inject.
func BuildPrompt(history []model.Message, env Envelopes) []model.Message {
	out := make([]model.Message, len(history))
	copy(out, history)

	firstIdx, lastIdx := -1, -1
	for i, m := range out {
		if m.Role != model.RoleUser {
			continue
		}
		if firstIdx == -1 {
			firstIdx = i
		}
		lastIdx = i
	}

	firstBlock := env.firstEnvelope()
	if firstIdx != -1 && firstBlock != "" {
		out[firstIdx].Content = firstBlock + out[firstIdx].Content
	}

	lastBlock := env.lastEnvelope()
	if lastIdx != -1 && lastBlock != "" {
		if lastIdx == firstIdx && firstBlock != "" {
			// Both envelope sets target the same lone user turn: the
			// message already starts with firstBlock, so splice lastBlock
			// in right after it rather than prepending ahead of it.
			rest := strings.TrimPrefix(out[lastIdx].Content, firstBlock)
			out[lastIdx].Content = firstBlock + lastBlock + rest
		} else {
			out[lastIdx].Content = lastBlock + out[lastIdx].Content
		}
	}
	return out
}

// ReconciliationDirective is appended to every model's history ahead of a
// refinement round, per the "please reconcile" re-prompt.
func ReconciliationDirective(disagreements map[string][]any) model.Message {
	var b strings.Builder
	b.WriteString("The previous round's proposals disagreed on the following parameters. Reconcile and propose again.\n")
	for param, values := range disagreements {
		fmt.Fprintf(&b, "- %s: proposed values were %v\n", param, values)
	}
	return model.Message{Role: model.RoleUser, Content: b.String()}
}
