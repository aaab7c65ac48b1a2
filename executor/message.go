package executor

import (
	"context"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/eventbus"
)

// SendMessage implements send_message: deliver content via
// dispatch.Directory.Deliver to the parent, the sender's direct children,
// an explicit list of agent ids, or, for an announcement, every descendant
// (an announcement is also broadcast on the task's messages topic) — no
// cross-recipient atomicity, matching eventbus.Bus.Broadcast's same
// best-effort guarantee.
func SendMessage(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	content, _ := params["content"].(string)
	if content == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "send_message requires content")
	}
	if scope.Directory == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no agent directory configured")
	}

	recipients, announcement := resolveRecipients(scope, params["to"])
	if !announcement && len(recipients) == 0 {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "send_message requires a resolvable recipient")
	}

	var sentTo []string
	if announcement && scope.EventBus != nil {
		scope.EventBus.Broadcast(eventbus.TopicTaskMessages(scope.TaskID), eventbus.MessageEvent{
			SenderID: scope.AgentID,
			Content:  content,
			At:       time.Now().Unix(),
		})
	}
	for _, id := range recipients {
		if err := scope.Directory.Deliver(ctx, id, content); err != nil {
			continue
		}
		sentTo = append(sentTo, id)
	}

	return dispatch.Result{Data: map[string]any{"sent_to": sentTo}, SentTo: sentTo}, nil
}

func resolveRecipients(scope dispatch.Scope, to any) (recipients []string, announcement bool) {
	switch v := to.(type) {
	case string:
		switch v {
		case "parent":
			if scope.ParentID != "" {
				return []string{scope.ParentID}, false
			}
			return nil, false
		case "children":
			for _, id := range scope.Directory.Descendants(scope.AgentID) {
				if scope.Directory.IsChild(scope.AgentID, id) {
					recipients = append(recipients, id)
				}
			}
			return recipients, false
		case "announcement":
			return scope.Directory.Descendants(scope.AgentID), true
		default:
			return []string{v}, false
		}
	case []any:
		for _, item := range v {
			if id, ok := item.(string); ok {
				recipients = append(recipients, id)
			}
		}
		return recipients, false
	}
	return nil, false
}
