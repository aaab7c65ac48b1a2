package executor

import (
	"context"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/registry"
)

// Skill is one named, reusable piece of agent know-how created by
// create_skill and looked up by learn_skills. It lives in the same
// registry.Base[T] every other keyed store in this module uses (model
// registry, agent registry).
type Skill struct {
	Name    string
	Content string
}

// SkillStore backs create_skill/learn_skills. It is process-wide (not
// per-agent): skills are a shared library any agent can
// learn from, not agent-private state.
type SkillStore struct {
	registry registry.Store[Skill]
}

func NewSkillStore() *SkillStore {
	return &SkillStore{registry: registry.New[Skill]()}
}

// CreateSkill implements create_skill.
func (s *SkillStore) CreateSkill(_ context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	name, _ := params["name"].(string)
	content, _ := params["content"].(string)
	if name == "" || content == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "create_skill requires name and content")
	}
	s.registry.Replace(name, Skill{Name: name, Content: content})
	return dispatch.Result{Data: map[string]any{"name": name, "created": true}}, nil
}

// LearnSkills implements learn_skills: fetch the content of every requested
// skill id, skipping ones that don't exist rather than failing the whole
// call (an agent asking about a not-yet-created skill is a normal, not
// exceptional, outcome).
func (s *SkillStore) LearnSkills(_ context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	raw, ok := params["skill_ids"].([]any)
	if !ok || len(raw) == 0 {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "learn_skills requires skill_ids")
	}

	learned := make([]map[string]any, 0, len(raw))
	var missing []string
	for _, v := range raw {
		id, _ := v.(string)
		skill, ok := s.registry.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		learned = append(learned, map[string]any{"name": skill.Name, "content": skill.Content})
	}

	return dispatch.Result{Data: map[string]any{"learned": learned, "missing": missing}}, nil
}
