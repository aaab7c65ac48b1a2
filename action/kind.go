// Package action declares the fixed vocabulary of action kinds the
// Consensus Engine can decide on and the Dispatcher can execute: one Kind
// constant, one Schema, and one priority tiebreak per kind. Schemas are Go
// struct literals checked once at startup by Compile; SchemaFor separately
// reflects the typed parameter structs in params.go into JSON Schema maps
// with invopop/jsonschema.
package action

// Kind identifies one action the Consensus Engine can decide on.
type Kind string

const (
	KindOrient         Kind = "orient"
	KindWait           Kind = "wait"
	KindSendMessage    Kind = "send_message"
	KindBatchSync      Kind = "batch_sync"
	KindBatchAsync     Kind = "batch_async"
	KindFetchWeb       Kind = "fetch_web"
	KindFileRead       Kind = "file_read"
	KindSearchSecrets  Kind = "search_secrets"
	KindLearnSkills    Kind = "learn_skills"
	KindAnswerEngine   Kind = "answer_engine"
	KindTodo           Kind = "todo"
	KindAdjustBudget   Kind = "adjust_budget"
	KindGenerateSecret Kind = "generate_secret"
	KindGenerateImages Kind = "generate_images"
	KindRecordCost     Kind = "record_cost"
	KindCallMCP        Kind = "call_mcp"
	KindCallAPI        Kind = "call_api"
	KindExecuteShell   Kind = "execute_shell"
	KindFileWrite      Kind = "file_write"
	KindDismissChild   Kind = "dismiss_child"
	KindCreateSkill    Kind = "create_skill"
	KindSpawnChild     Kind = "spawn_child"
)

// Priority is the tiebreak order: lower wins a mode_selection or
// action-kind majority-vote tie. Conservative (read-only, self-contained)
// kinds sort before costly or destructive ones.
var Priority = map[Kind]int{
	KindOrient:         1,
	KindWait:           2,
	KindSendMessage:    3,
	KindBatchSync:      4,
	KindBatchAsync:     5,
	KindFetchWeb:       6,
	KindFileRead:       7,
	KindSearchSecrets:  8,
	KindLearnSkills:    9,
	KindAnswerEngine:   10,
	KindTodo:           11,
	KindAdjustBudget:   12,
	KindGenerateSecret: 13,
	KindGenerateImages: 14,
	KindRecordCost:     15,
	KindCallMCP:        16,
	KindCallAPI:        17,
	KindExecuteShell:   18,
	KindFileWrite:      19,
	KindDismissChild:   20,
	KindCreateSkill:    21,
	KindSpawnChild:     22,
}

// AllKinds lists every declared Kind in priority order, used by Compile to
// walk the full Schemas table at startup.
var AllKinds = []Kind{
	KindOrient, KindWait, KindSendMessage, KindBatchSync, KindBatchAsync,
	KindFetchWeb, KindFileRead, KindSearchSecrets, KindLearnSkills,
	KindAnswerEngine, KindTodo, KindAdjustBudget, KindGenerateSecret,
	KindGenerateImages, KindRecordCost, KindCallMCP, KindCallAPI,
	KindExecuteShell, KindFileWrite, KindDismissChild, KindCreateSkill,
	KindSpawnChild,
}

// batchableKinds lists the kinds batch_sync/batch_async may contain as
// sub-actions: only wait, batch_sync, and batch_async are excluded. The same
// list serves both batch kinds, so execute_shell and every other kind may be
// nested in a batch_sync as well as in a batch_async.
var batchableKinds = map[Kind]bool{
	KindOrient:         true,
	KindSendMessage:    true,
	KindFetchWeb:       true,
	KindFileRead:       true,
	KindSearchSecrets:  true,
	KindLearnSkills:    true,
	KindAnswerEngine:   true,
	KindTodo:           true,
	KindAdjustBudget:   true,
	KindGenerateSecret: true,
	KindGenerateImages: true,
	KindRecordCost:     true,
	KindCallMCP:        true,
	KindCallAPI:        true,
	KindExecuteShell:   true,
	KindFileWrite:      true,
	KindDismissChild:   true,
	KindCreateSkill:    true,
	KindSpawnChild:     true,
}

// IsBatchable reports whether kind may appear as a sub-action of batch_sync
// or batch_async.
func IsBatchable(kind Kind) bool {
	return batchableKinds[kind]
}
