package executor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/persistence"
)

// GenerateSecret implements generate_secret: store a named secret value,
// generating a random one when the caller doesn't supply one. The
// named-lookup shape it stores against is name/value pairs resolved by
// type at use time, here by the {{SECRET:name}} resolver.
func GenerateSecret(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "generate_secret requires name")
	}
	if scope.Store == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no secret store configured")
	}

	value, _ := params["value"].(string)
	if value == "" {
		generated, err := randomSecret(32)
		if err != nil {
			return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to generate secret value", err)
		}
		value = generated
	}

	if err := scope.Store.InsertSecret(ctx, persistence.SecretRecord{
		Name:      name,
		Value:     []byte(value),
		CreatedAt: time.Now(),
	}); err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to store secret", err)
	}

	return dispatch.Result{Data: map[string]any{"name": name, "generated": params["value"] == nil}}, nil
}

func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SearchSecrets implements search_secrets. persistence.Store has no secret
// enumeration (the never names one), so this is a name-exact lookup
// keyed by the query string: it reports whether a secret by that name
// exists without ever returning its value, matching the "{{SECRET:name}}
// reference, never the value" discipline the requires everywhere
// else.
func SearchSecrets(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "search_secrets requires query")
	}
	if scope.Store == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no secret store configured")
	}

	rec, err := scope.Store.GetSecret(ctx, query)
	if err != nil {
		return dispatch.Result{Data: map[string]any{"query": query, "found": false}}, nil
	}
	return dispatch.Result{Data: map[string]any{
		"query": query,
		"found": true,
		"name":  rec.Name,
	}}, nil
}
