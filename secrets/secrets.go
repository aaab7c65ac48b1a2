// Package secrets implements the secret-resolver and output-scrubber
// adapters: `{{SECRET:name}}` template resolution in
// action params, usage auditing, and scrubbing of resolved secret values out
// of anything headed for conversation history. The `{{SECRET:name}}` regex
// substitution uses the same regexp.MustCompile + ReplaceAllStringFunc
// shape as environment-variable expansion.
package secrets

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shelvick/quoracle/persistence"
)

var secretRefPattern = regexp.MustCompile(`\{\{SECRET:([A-Za-z0-9_.\-]+)\}\}`)

// Resolver resolves `{{SECRET:name}}` templates inside action params and
// records which secrets were used.
type Resolver interface {
	ResolveParams(ctx context.Context, agentID string, params map[string]any) (resolved map[string]any, used []string, err error)
}

// Store is the slice of persistence.Store the resolver needs, kept narrow so
// this package doesn't require the full durability contract to be wired in
// tests.
type Store interface {
	GetSecret(ctx context.Context, name string) (persistence.SecretRecord, error)
	LogSecretUsage(ctx context.Context, usage persistence.SecretUsage) error
}

// DefaultResolver is the standard Resolver, backed by a persistence Store.
type DefaultResolver struct {
	store Store
}

// NewDefaultResolver creates a Resolver backed by store.
func NewDefaultResolver(store Store) *DefaultResolver {
	return &DefaultResolver{store: store}
}

// ResolveParams walks every string-valued param (recursing into nested maps
// and slices) and substitutes `{{SECRET:name}}` references with the secret's
// stored value, returning the set of secret names used so the caller can
// both audit and scrub them.
func (r *DefaultResolver) ResolveParams(ctx context.Context, agentID string, params map[string]any) (map[string]any, []string, error) {
	used := map[string]struct{}{}
	resolved, err := r.resolveValue(ctx, params, used)
	if err != nil {
		return nil, nil, err
	}

	usedNames := make([]string, 0, len(used))
	for name := range used {
		usedNames = append(usedNames, name)
		if err := r.store.LogSecretUsage(ctx, persistence.SecretUsage{
			SecretName: name,
			AgentID:    agentID,
			At:         time.Now().Unix(),
		}); err != nil {
			return nil, nil, fmt.Errorf("secrets: log usage for %q: %w", name, err)
		}
	}

	resolvedMap, _ := resolved.(map[string]any)
	return resolvedMap, usedNames, nil
}

func (r *DefaultResolver) resolveValue(ctx context.Context, v any, used map[string]struct{}) (any, error) {
	switch val := v.(type) {
	case string:
		return r.resolveString(ctx, val, used)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			resolved, err := r.resolveValue(ctx, vv, used)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			resolved, err := r.resolveValue(ctx, vv, used)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *DefaultResolver) resolveString(ctx context.Context, s string, used map[string]struct{}) (string, error) {
	if !strings.Contains(s, "{{SECRET:") {
		return s, nil
	}

	var resolveErr error
	out := secretRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		name := secretRefPattern.FindStringSubmatch(match)[1]
		rec, err := r.store.GetSecret(ctx, name)
		if err != nil {
			resolveErr = fmt.Errorf("secrets: resolve %q: %w", name, err)
			return match
		}
		used[name] = struct{}{}
		return string(rec.Value)
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}
