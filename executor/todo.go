package executor

import (
	"context"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/eventbus"
)

// Todo implements the todo action kind: wholesale replacement of an agent's
// todo list. The canonical copy lives in agentcore's AgentState (the
// executor is a fresh, stateless process per call), so Todo only validates
// the incoming list, echoes it back as the result for the agent to persist,
// and
// publishes the change on the agent's todos topic.
func Todo(_ context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	raw, ok := params["items"].([]any)
	if !ok || len(raw) == 0 {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "todo requires a non-empty items list")
	}

	items := make([]eventbus.TodoItem, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "todo item must be an object")
		}
		content, _ := m["content"].(string)
		state, _ := m["state"].(string)
		if content == "" || !validTodoState(state) {
			return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "todo item requires content and a valid state")
		}
		items = append(items, eventbus.TodoItem{Content: content, State: state})
	}

	if scope.EventBus != nil {
		scope.EventBus.Broadcast(eventbus.TopicAgentTodos(scope.AgentID), eventbus.TodosChangedEvent{
			AgentID: scope.AgentID,
			Todos:   items,
		})
	}

	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{"content": it.Content, "state": it.State}
	}
	return dispatch.Result{Data: map[string]any{"items": out, "replaced_at": time.Now().Unix()}}, nil
}

func validTodoState(s string) bool {
	switch s {
	case "todo", "pending", "done":
		return true
	}
	return false
}
