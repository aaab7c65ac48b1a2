package executor

import (
	"context"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/model"
)

// AnswerEngineExecutor implements answer_engine: a direct question answered
// by one configured model, treated as one more external call rather than a
// consensus round — the same provider adapters are reused for any action
// that needs a raw model call outside the consensus engine's ballot
// machinery.
type AnswerEngineExecutor struct {
	Client model.Client
}

func NewAnswerEngineExecutor(client model.Client) *AnswerEngineExecutor {
	return &AnswerEngineExecutor{Client: client}
}

func (e *AnswerEngineExecutor) AnswerEngine(ctx context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "answer_engine requires query")
	}
	if e.Client == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no answer engine model configured")
	}

	reply, err := e.Client.Generate(ctx, []model.Message{{Role: model.RoleUser, Content: query}}, model.SamplingOpts{Temperature: 0})
	if err != nil {
		return dispatch.Result{}, err
	}

	return dispatch.Result{Data: map[string]any{"query": query, "answer": reply.Content}}, nil
}

// GenerateImagesExecutor implements generate_images behind the same
// dispatch.ExecFunc contract. No reference image-generation code exists in
// the corpus this module was built against (documented in DESIGN.md);
// Generator is left pluggable so a real provider adapter can be wired in
// without touching the executor contract.
type GenerateImagesExecutor struct {
	Generator func(ctx context.Context, prompt string, count int) ([]string, error)
}

func NewGenerateImagesExecutor(generator func(ctx context.Context, prompt string, count int) ([]string, error)) *GenerateImagesExecutor {
	return &GenerateImagesExecutor{Generator: generator}
}

func (e *GenerateImagesExecutor) GenerateImages(ctx context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	prompt, _ := params["prompt"].(string)
	if prompt == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "generate_images requires prompt")
	}
	count := 1
	if n, ok := toInt(params["count"]); ok && n > 0 {
		count = n
	}
	if e.Generator == nil {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "no image generator configured")
	}

	urls, err := e.Generator(ctx, prompt, count)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "image generation failed", err)
	}
	return dispatch.Result{Data: map[string]any{"prompt": prompt, "images": urls}}, nil
}
