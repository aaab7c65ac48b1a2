package action

// The structs below are the typed shape of each action kind's params map
// and the reflection source for SchemaFor's JSON Schema. Nothing decodes
// params into them: the dispatcher and executors read the params map
// directly. Field shape mirrors the
// RequiredParams/OptionalParams/ParamTypes declared for the same Kind in
// schema.go; the two are kept in sync by hand since one is a dynamic
// consensus-oriented table and the other a compile-time Go type.

type OrientParams struct {
	Thought string `json:"thought" jsonschema:"required,description=internal reasoning turn"`
}

type WaitParams struct {
	Wait any `json:"wait,omitempty" jsonschema:"description=true=indefinite false/0=immediate N=seconds"`
}

type SendMessageParams struct {
	To      any    `json:"to" jsonschema:"required,description=parent, children, announcement, or a list of agent ids"`
	Content string `json:"content" jsonschema:"required,description=message body"`
}

type BatchActionParams struct {
	Actions []map[string]any `json:"actions" jsonschema:"required,description=batchable sub-actions"`
}

type FetchWebParams struct {
	URL    string `json:"url" jsonschema:"required,description=URL to fetch"`
	Method string `json:"method,omitempty" jsonschema:"description=HTTP method, default GET"`
	Wait   any    `json:"wait,omitempty"`
}

type FileReadParams struct {
	Path string `json:"path" jsonschema:"required,description=workspace-relative path"`
}

type FileWriteParams struct {
	Path    string `json:"path" jsonschema:"required"`
	Content string `json:"content" jsonschema:"required"`
}

type SearchSecretsParams struct {
	Query string `json:"query" jsonschema:"required"`
}

type LearnSkillsParams struct {
	SkillIDs []string `json:"skill_ids" jsonschema:"required"`
}

type AnswerEngineParams struct {
	Query string `json:"query" jsonschema:"required"`
	Wait  any    `json:"wait,omitempty"`
}

type TodoItemParams struct {
	Content string `json:"content" jsonschema:"required"`
	State   string `json:"state" jsonschema:"required,enum=todo,enum=pending,enum=done"`
}

type TodoParams struct {
	Items []TodoItemParams `json:"items" jsonschema:"required"`
}

type AdjustBudgetParams struct {
	ChildID   string  `json:"child_id" jsonschema:"required"`
	NewBudget float64 `json:"new_budget" jsonschema:"required"`
}

type GenerateSecretParams struct {
	Name  string `json:"name" jsonschema:"required"`
	Value string `json:"value,omitempty"`
}

type GenerateImagesParams struct {
	Prompt string `json:"prompt" jsonschema:"required"`
	Count  int    `json:"count,omitempty"`
}

type RecordCostParams struct {
	CostType string         `json:"cost_type" jsonschema:"required"`
	Amount   float64        `json:"amount" jsonschema:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CallMCPParams struct {
	Server string         `json:"server" jsonschema:"required"`
	Tool   string         `json:"tool" jsonschema:"required"`
	Args   map[string]any `json:"args,omitempty"`
	Wait   any            `json:"wait,omitempty"`
}

type CallAPIParams struct {
	URL     string         `json:"url" jsonschema:"required"`
	Method  string         `json:"method" jsonschema:"required,enum=GET,enum=POST,enum=PUT,enum=PATCH,enum=DELETE"`
	Headers map[string]any `json:"headers,omitempty"`
	Body    any            `json:"body,omitempty"`
	Wait    any            `json:"wait,omitempty"`
}

type ExecuteShellParams struct {
	Command   string `json:"command,omitempty"`
	CheckID   string `json:"check_id,omitempty"`
	Terminate bool   `json:"terminate,omitempty"`
}

type DismissChildParams struct {
	ChildID string `json:"child_id" jsonschema:"required"`
	Reason  string `json:"reason,omitempty"`
}

type CreateSkillParams struct {
	Name    string `json:"name" jsonschema:"required"`
	Content string `json:"content" jsonschema:"required"`
}

type SpawnChildParams struct {
	Profile           string   `json:"profile" jsonschema:"required"`
	InitialMessage    string   `json:"initial_message" jsonschema:"required"`
	Budget            *float64 `json:"budget,omitempty"`
	CapabilityGroups  []string `json:"capability_groups,omitempty"`
}
