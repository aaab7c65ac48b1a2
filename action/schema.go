package action

// Schema is everything the Consensus Engine and Dispatcher need to know
// about one action kind.
type Schema struct {
	Kind              Kind
	Priority          int
	RequiredParams    []string
	OptionalParams    []string
	XorParams         [][]string
	ParamTypes        map[string]ParamType
	ParamDescriptions map[string]string
	ConsensusRules    map[string]ConsensusRule
	// AlwaysSync kinds never arm an async completion; their result message
	// always arrives before the dispatcher reports back to the agent.
	AlwaysSync bool
}

// Schemas is the compiled-at-package-init table; Compile (in registry.go)
// validates it at startup before anything consults it.
var Schemas = map[Kind]Schema{
	KindOrient: {
		Kind:           KindOrient,
		Priority:       Priority[KindOrient],
		RequiredParams: []string{"thought"},
		ParamTypes:     map[string]ParamType{"thought": TString()},
		ParamDescriptions: map[string]string{
			"thought": "internal reasoning, not delivered to anyone; advances no external state",
		},
		ConsensusRules: map[string]ConsensusRule{"thought": SemanticSimilarity(0.8)},
		AlwaysSync:     true,
	},
	KindWait: {
		Kind:           KindWait,
		Priority:       Priority[KindWait],
		OptionalParams: []string{"wait"},
		ParamTypes: map[string]ParamType{
			"wait": TUnion(TBoolean(), TInteger()),
		},
		ParamDescriptions: map[string]string{
			"wait": "true = indefinite, false/0 = immediate, N = N seconds",
		},
		ConsensusRules: map[string]ConsensusRule{"wait": ModeSelection()},
		AlwaysSync:     true,
	},
	KindSendMessage: {
		Kind:           KindSendMessage,
		Priority:       Priority[KindSendMessage],
		RequiredParams: []string{"to", "content"},
		ParamTypes: map[string]ParamType{
			"to":      TUnion(TEnum("parent", "children", "announcement"), TList(TString())),
			"content": TString(),
		},
		ParamDescriptions: map[string]string{
			"to":      "recipient(s): parent, children, announcement, or a list of agent IDs",
			"content": "message body delivered to each resolved recipient",
		},
		ConsensusRules: map[string]ConsensusRule{
			"to":      UnionMerge(),
			"content": SemanticSimilarity(0.85),
		},
		AlwaysSync: true,
	},
	KindBatchSync: {
		Kind:           KindBatchSync,
		Priority:       Priority[KindBatchSync],
		RequiredParams: []string{"actions"},
		ParamTypes: map[string]ParamType{
			"actions": TList(TMap()),
		},
		ParamDescriptions: map[string]string{
			"actions": "≥2 batchable sub-actions run sequentially, stopping on first error",
		},
		ConsensusRules: map[string]ConsensusRule{"actions": BatchSequenceMerge()},
		AlwaysSync:     true,
	},
	KindBatchAsync: {
		Kind:           KindBatchAsync,
		Priority:       Priority[KindBatchAsync],
		RequiredParams: []string{"actions"},
		ParamTypes: map[string]ParamType{
			"actions": TList(TMap()),
		},
		ParamDescriptions: map[string]string{
			"actions": "≥2 batchable sub-actions run concurrently; each result arrives independently",
		},
		ConsensusRules: map[string]ConsensusRule{"actions": BatchSequenceMerge()},
	},
	KindFetchWeb: {
		Kind:           KindFetchWeb,
		Priority:       Priority[KindFetchWeb],
		RequiredParams: []string{"url"},
		OptionalParams: []string{"method", "wait"},
		ParamTypes: map[string]ParamType{
			"url":    TString(),
			"method": TEnum("GET", "POST"),
			"wait":   TUnion(TBoolean(), TInteger()),
		},
		ParamDescriptions: map[string]string{
			"url":    "URL to fetch",
			"method": "HTTP method, defaults to GET",
		},
		ConsensusRules: map[string]ConsensusRule{
			"url":    ExactMatch(),
			"method": ModeSelection(),
		},
		AlwaysSync: true,
	},
	KindFileRead: {
		Kind:           KindFileRead,
		Priority:       Priority[KindFileRead],
		RequiredParams: []string{"path"},
		ParamTypes:     map[string]ParamType{"path": TString()},
		ParamDescriptions: map[string]string{
			"path": "workspace-relative path to read",
		},
		ConsensusRules: map[string]ConsensusRule{"path": ExactMatch()},
		AlwaysSync:     true,
	},
	KindSearchSecrets: {
		Kind:           KindSearchSecrets,
		Priority:       Priority[KindSearchSecrets],
		RequiredParams: []string{"query"},
		ParamTypes:     map[string]ParamType{"query": TString()},
		ParamDescriptions: map[string]string{
			"query": "substring or tag to match against known secret names",
		},
		ConsensusRules: map[string]ConsensusRule{"query": SemanticSimilarity(0.8)},
		AlwaysSync:     true,
	},
	KindLearnSkills: {
		Kind:           KindLearnSkills,
		Priority:       Priority[KindLearnSkills],
		RequiredParams: []string{"skill_ids"},
		ParamTypes:     map[string]ParamType{"skill_ids": TList(TString())},
		ParamDescriptions: map[string]string{
			"skill_ids": "skills to load into this agent's active set",
		},
		ConsensusRules: map[string]ConsensusRule{"skill_ids": UnionMerge()},
		AlwaysSync:     true,
	},
	KindAnswerEngine: {
		Kind:           KindAnswerEngine,
		Priority:       Priority[KindAnswerEngine],
		RequiredParams: []string{"query"},
		OptionalParams: []string{"wait"},
		ParamTypes: map[string]ParamType{
			"query": TString(),
			"wait":  TUnion(TBoolean(), TInteger()),
		},
		ParamDescriptions: map[string]string{
			"query": "question routed to the configured answer engine",
		},
		ConsensusRules: map[string]ConsensusRule{"query": SemanticSimilarity(0.85)},
		AlwaysSync:     true,
	},
	KindTodo: {
		Kind:           KindTodo,
		Priority:       Priority[KindTodo],
		RequiredParams: []string{"items"},
		ParamTypes: map[string]ParamType{
			"items": TList(TShape(map[string]ParamType{
				"content": TString(),
				"state":   TEnum("todo", "pending", "done"),
			})),
		},
		ParamDescriptions: map[string]string{
			"items": "wholesale replacement for the agent's todo list",
		},
		ConsensusRules: map[string]ConsensusRule{"items": StructuralMerge()},
		AlwaysSync:     true,
	},
	KindAdjustBudget: {
		Kind:           KindAdjustBudget,
		Priority:       Priority[KindAdjustBudget],
		RequiredParams: []string{"child_id", "new_budget"},
		ParamTypes: map[string]ParamType{
			"child_id":   TString(),
			"new_budget": TNumber(),
		},
		ParamDescriptions: map[string]string{
			"child_id":   "must be a direct child of the caller",
			"new_budget": "rejected below child.spent + child.committed (would_violate_escrow)",
		},
		ConsensusRules: map[string]ConsensusRule{
			"child_id":   ExactMatch(),
			"new_budget": Percentile(50),
		},
		AlwaysSync: true,
	},
	KindGenerateSecret: {
		Kind:           KindGenerateSecret,
		Priority:       Priority[KindGenerateSecret],
		RequiredParams: []string{"name"},
		OptionalParams: []string{"value"},
		ParamTypes: map[string]ParamType{
			"name":  TString(),
			"value": TString(),
		},
		ParamDescriptions: map[string]string{
			"name":  "secret identifier used by {{SECRET:name}} references",
			"value": "explicit value; generated randomly when omitted",
		},
		ConsensusRules: map[string]ConsensusRule{
			"name":  ExactMatch(),
			"value": FirstNonNil(),
		},
		AlwaysSync: true,
	},
	KindGenerateImages: {
		Kind:           KindGenerateImages,
		Priority:       Priority[KindGenerateImages],
		RequiredParams: []string{"prompt"},
		OptionalParams: []string{"count"},
		ParamTypes: map[string]ParamType{
			"prompt": TString(),
			"count":  TInteger(),
		},
		ParamDescriptions: map[string]string{
			"prompt": "image generation prompt",
			"count":  "number of images to produce, default 1",
		},
		ConsensusRules: map[string]ConsensusRule{
			"prompt": SemanticSimilarity(0.85),
			"count":  Percentile(50),
		},
		AlwaysSync: true,
	},
	KindRecordCost: {
		Kind:           KindRecordCost,
		Priority:       Priority[KindRecordCost],
		RequiredParams: []string{"cost_type", "amount"},
		OptionalParams: []string{"metadata"},
		ParamTypes: map[string]ParamType{
			"cost_type": TString(),
			"amount":    TNumber(),
			"metadata":  TMap(),
		},
		ParamDescriptions: map[string]string{
			"cost_type": "category recorded alongside the ledger row",
			"amount":    "non-negative cost amount",
		},
		ConsensusRules: map[string]ConsensusRule{
			"cost_type": ModeSelection(),
			"amount":    Percentile(50),
			"metadata":  MergeMaps(),
		},
		AlwaysSync: true,
	},
	KindCallMCP: {
		Kind:           KindCallMCP,
		Priority:       Priority[KindCallMCP],
		RequiredParams: []string{"server", "tool"},
		OptionalParams: []string{"args", "wait"},
		ParamTypes: map[string]ParamType{
			"server": TString(),
			"tool":   TString(),
			"args":   TMap(),
			"wait":   TUnion(TBoolean(), TInteger()),
		},
		ParamDescriptions: map[string]string{
			"server": "configured MCP server name",
			"tool":   "tool name exposed by that server",
			"args":   "arguments passed to the MCP tool call",
		},
		ConsensusRules: map[string]ConsensusRule{
			"server": ExactMatch(),
			"tool":   ExactMatch(),
			"args":   MergeMaps(),
		},
		AlwaysSync: true,
	},
	KindCallAPI: {
		Kind:           KindCallAPI,
		Priority:       Priority[KindCallAPI],
		RequiredParams: []string{"url", "method"},
		OptionalParams: []string{"headers", "body", "wait"},
		ParamTypes: map[string]ParamType{
			"url":     TString(),
			"method":  TEnum("GET", "POST", "PUT", "PATCH", "DELETE"),
			"headers": TMap(),
			"body":    TAny(),
			"wait":    TUnion(TBoolean(), TInteger()),
		},
		ParamDescriptions: map[string]string{
			"url":     "endpoint to call",
			"method":  "HTTP method",
			"headers": "request headers, may contain {{SECRET:name}} references",
			"body":    "request body",
		},
		ConsensusRules: map[string]ConsensusRule{
			"url":     ExactMatch(),
			"method":  ModeSelection(),
			"headers": MergeMaps(),
			"body":    StructuralMerge(),
		},
		AlwaysSync: true,
	},
	KindExecuteShell: {
		Kind:           KindExecuteShell,
		Priority:       Priority[KindExecuteShell],
		OptionalParams: []string{"command", "check_id", "terminate"},
		XorParams:      [][]string{{"command", "check_id"}},
		ParamTypes: map[string]ParamType{
			"command":   TString(),
			"check_id":  TString(),
			"terminate": TBoolean(),
		},
		ParamDescriptions: map[string]string{
			"command":   "shell command to start; omit when checking or terminating",
			"check_id":  "id of a previously started command to poll",
			"terminate": "with check_id, kill the running command",
		},
		ConsensusRules: map[string]ConsensusRule{
			"command":   SemanticSimilarity(0.9),
			"check_id":  ExactMatch(),
			"terminate": ModeSelection(),
		},
	},
	KindFileWrite: {
		Kind:           KindFileWrite,
		Priority:       Priority[KindFileWrite],
		RequiredParams: []string{"path", "content"},
		ParamTypes: map[string]ParamType{
			"path":    TString(),
			"content": TString(),
		},
		ParamDescriptions: map[string]string{
			"path":    "workspace-relative path to write",
			"content": "full file content",
		},
		ConsensusRules: map[string]ConsensusRule{
			"path":    ExactMatch(),
			"content": StructuralMerge(),
		},
		AlwaysSync: true,
	},
	KindDismissChild: {
		Kind:           KindDismissChild,
		Priority:       Priority[KindDismissChild],
		RequiredParams: []string{"child_id"},
		OptionalParams: []string{"reason"},
		ParamTypes: map[string]ParamType{
			"child_id": TString(),
			"reason":   TString(),
		},
		ParamDescriptions: map[string]string{
			"child_id": "must be a direct child of the caller",
			"reason":   "recorded against the child's termination event",
		},
		ConsensusRules: map[string]ConsensusRule{
			"child_id": ExactMatch(),
			"reason":   FirstNonNil(),
		},
		AlwaysSync: true,
	},
	KindCreateSkill: {
		Kind:           KindCreateSkill,
		Priority:       Priority[KindCreateSkill],
		RequiredParams: []string{"name", "content"},
		ParamTypes: map[string]ParamType{
			"name":    TString(),
			"content": TString(),
		},
		ParamDescriptions: map[string]string{
			"name":    "skill identifier for future learn_skills calls",
			"content": "skill definition body",
		},
		ConsensusRules: map[string]ConsensusRule{
			"name":    ExactMatch(),
			"content": StructuralMerge(),
		},
		AlwaysSync: true,
	},
	KindSpawnChild: {
		Kind:           KindSpawnChild,
		Priority:       Priority[KindSpawnChild],
		RequiredParams: []string{"profile", "initial_message"},
		OptionalParams: []string{"budget", "capability_groups"},
		ParamTypes: map[string]ParamType{
			"profile":           TString(),
			"initial_message":   TString(),
			"budget":            TNumber(),
			"capability_groups": TList(TString()),
		},
		ParamDescriptions: map[string]string{
			"profile":           "named profile the child inherits models/capabilities from",
			"initial_message":   "first user turn delivered to the child",
			"budget":            "allocation escrowed from the parent's available funds",
			"capability_groups": "additional tags merged into the child's capability set",
		},
		ConsensusRules: map[string]ConsensusRule{
			"profile":           ExactMatch(),
			"initial_message":   SemanticSimilarity(0.85),
			"budget":            Percentile(50),
			"capability_groups": UnionMerge(),
		},
		AlwaysSync: true,
	},
}
