package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/persistence"
)

type fakeDirectory struct {
	children  map[string][]string
	budgets   map[string]budget.Data
	spent     map[string]float64
	delivered map[string][]string
	spawned   []dispatch.SpawnRequest
	dismissed []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		children:  map[string][]string{},
		budgets:   map[string]budget.Data{},
		spent:     map[string]float64{},
		delivered: map[string][]string{},
	}
}

func (d *fakeDirectory) Spawn(_ context.Context, req dispatch.SpawnRequest) (string, error) {
	d.spawned = append(d.spawned, req)
	childID := "child-1"
	d.children[req.ParentID] = append(d.children[req.ParentID], childID)
	return childID, nil
}

func (d *fakeDirectory) Dismiss(_ context.Context, childID, _ string) error {
	d.dismissed = append(d.dismissed, childID)
	return nil
}

func (d *fakeDirectory) Deliver(_ context.Context, agentID, content string) error {
	d.delivered[agentID] = append(d.delivered[agentID], content)
	return nil
}

func (d *fakeDirectory) IsChild(parentID, childID string) bool {
	for _, c := range d.children[parentID] {
		if c == childID {
			return true
		}
	}
	return false
}

func (d *fakeDirectory) Descendants(agentID string) []string {
	return d.children[agentID]
}

func (d *fakeDirectory) ChildBudget(childID string) (budget.Data, float64, bool) {
	data, ok := d.budgets[childID]
	return data, d.spent[childID], ok
}

func (d *fakeDirectory) SetChildBudget(childID string, data budget.Data) error {
	d.budgets[childID] = data
	return nil
}

func TestOrientReturnsThought(t *testing.T) {
	result, err := Orient(context.Background(), action.KindOrient, map[string]any{"thought": "thinking"}, dispatch.Scope{})
	require.NoError(t, err)
	require.Equal(t, "thinking", result.Data["thought"])
}

func TestOrientRejectsMissingThought(t *testing.T) {
	_, err := Orient(context.Background(), action.KindOrient, map[string]any{}, dispatch.Scope{})
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindMissingRequiredParam))
}

func TestFileWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := FileConfig{WorkingDirectory: dir, MaxFileSize: 1024, BackupOnOverwrite: true}
	writer := NewFileWriteExecutor(cfg)
	reader := NewFileReadExecutor(cfg)

	result, err := writer.FileWrite(context.Background(), action.KindFileWrite, map[string]any{
		"path": "note.txt", "content": "hello\nworld",
	}, dispatch.Scope{})
	require.NoError(t, err)
	require.Equal(t, false, result.Data["overwritten"])

	readResult, err := reader.FileRead(context.Background(), action.KindFileRead, map[string]any{"path": "note.txt"}, dispatch.Scope{})
	require.NoError(t, err)
	require.Contains(t, readResult.Data["content"], "hello")

	overwrite, err := writer.FileWrite(context.Background(), action.KindFileWrite, map[string]any{
		"path": "note.txt", "content": "new",
	}, dispatch.Scope{})
	require.NoError(t, err)
	require.Equal(t, true, overwrite.Data["overwritten"])
	_, statErr := os.Stat(filepath.Join(dir, "note.txt.bak"))
	require.NoError(t, statErr)
}

func TestFileReadRejectsPathEscape(t *testing.T) {
	cfg := FileConfig{WorkingDirectory: t.TempDir(), MaxFileSize: 1024}
	reader := NewFileReadExecutor(cfg)
	_, err := reader.FileRead(context.Background(), action.KindFileRead, map[string]any{"path": "../etc/passwd"}, dispatch.Scope{})
	require.Error(t, err)
}

func TestTodoWholesaleReplace(t *testing.T) {
	result, err := Todo(context.Background(), action.KindTodo, map[string]any{
		"items": []any{
			map[string]any{"content": "write tests", "state": "pending"},
			map[string]any{"content": "ship", "state": "todo"},
		},
	}, dispatch.Scope{AgentID: "a1"})
	require.NoError(t, err)
	items := result.Data["items"].([]map[string]any)
	require.Len(t, items, 2)
}

func TestTodoRejectsInvalidState(t *testing.T) {
	_, err := Todo(context.Background(), action.KindTodo, map[string]any{
		"items": []any{map[string]any{"content": "x", "state": "bogus"}},
	}, dispatch.Scope{})
	require.Error(t, err)
}

func TestRecordCostAppendsAndBroadcasts(t *testing.T) {
	store := persistence.NewMemory()
	scope := dispatch.Scope{AgentID: "a1", TaskID: "t1", Store: store}
	_, err := RecordCost(context.Background(), action.KindRecordCost, map[string]any{
		"cost_type": "llm_tokens", "amount": 1.5,
	}, scope)
	require.NoError(t, err)
	sum, err := store.SumCostByAgent(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, 1.5, sum)
}

func TestSpawnChildCallsDirectoryAndReturnsID(t *testing.T) {
	dir := newFakeDirectory()
	scope := dispatch.Scope{AgentID: "parent", Directory: dir}
	result, err := SpawnChild(context.Background(), action.KindSpawnChild, map[string]any{
		"profile": "researcher", "initial_message": "go look into X",
	}, scope)
	require.NoError(t, err)
	require.Equal(t, "child-1", result.Data["child_id"])
	require.Len(t, dir.spawned, 1)
}

func TestDismissChildRejectsNonChild(t *testing.T) {
	dir := newFakeDirectory()
	scope := dispatch.Scope{AgentID: "parent", Directory: dir}
	_, err := DismissChild(context.Background(), action.KindDismissChild, map[string]any{"child_id": "stranger"}, scope)
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindForbidden))
}

func TestAdjustBudgetRejectsEscrowViolation(t *testing.T) {
	dir := newFakeDirectory()
	dir.children["parent"] = []string{"child-1"}
	dir.budgets["child-1"] = budget.NewAllocated(100)
	dir.spent["child-1"] = 90
	scope := dispatch.Scope{AgentID: "parent", Directory: dir}

	_, err := AdjustBudget(context.Background(), action.KindAdjustBudget, map[string]any{
		"child_id": "child-1", "new_budget": 50.0,
	}, scope)
	require.Error(t, err)
}

func TestAdjustBudgetAllowsIncrease(t *testing.T) {
	dir := newFakeDirectory()
	dir.children["parent"] = []string{"child-1"}
	dir.budgets["child-1"] = budget.NewAllocated(100)
	dir.spent["child-1"] = 90
	scope := dispatch.Scope{AgentID: "parent", Directory: dir}

	result, err := AdjustBudget(context.Background(), action.KindAdjustBudget, map[string]any{
		"child_id": "child-1", "new_budget": 200.0,
	}, scope)
	require.NoError(t, err)
	require.Equal(t, 200.0, result.Data["new_budget"])
	require.Equal(t, 200.0, *dir.budgets["child-1"].Allocated)
}

func TestSendMessageToParent(t *testing.T) {
	dir := newFakeDirectory()
	scope := dispatch.Scope{AgentID: "child-1", ParentID: "parent", Directory: dir}
	result, err := SendMessage(context.Background(), action.KindSendMessage, map[string]any{
		"to": "parent", "content": "status update",
	}, scope)
	require.NoError(t, err)
	require.Equal(t, []string{"status update"}, dir.delivered["parent"])
	require.Equal(t, []string{"parent"}, result.SentTo)
}

func TestSendMessageToExplicitList(t *testing.T) {
	dir := newFakeDirectory()
	scope := dispatch.Scope{AgentID: "a1", Directory: dir}
	_, err := SendMessage(context.Background(), action.KindSendMessage, map[string]any{
		"to": []any{"x", "y"}, "content": "hi",
	}, scope)
	require.NoError(t, err)
	require.Equal(t, []string{"hi"}, dir.delivered["x"])
	require.Equal(t, []string{"hi"}, dir.delivered["y"])
}

func TestGenerateSecretThenSearchSecrets(t *testing.T) {
	store := persistence.NewMemory()
	scope := dispatch.Scope{Store: store}

	_, err := GenerateSecret(context.Background(), action.KindGenerateSecret, map[string]any{"name": "api_key"}, scope)
	require.NoError(t, err)

	found, err := SearchSecrets(context.Background(), action.KindSearchSecrets, map[string]any{"query": "api_key"}, scope)
	require.NoError(t, err)
	require.Equal(t, true, found.Data["found"])

	missing, err := SearchSecrets(context.Background(), action.KindSearchSecrets, map[string]any{"query": "nope"}, scope)
	require.NoError(t, err)
	require.Equal(t, false, missing.Data["found"])
}

func TestCreateSkillThenLearnSkills(t *testing.T) {
	store := NewSkillStore()
	_, err := store.CreateSkill(context.Background(), action.KindCreateSkill, map[string]any{
		"name": "retry-backoff", "content": "always use exponential backoff",
	}, dispatch.Scope{})
	require.NoError(t, err)

	result, err := store.LearnSkills(context.Background(), action.KindLearnSkills, map[string]any{
		"skill_ids": []any{"retry-backoff", "unknown-skill"},
	}, dispatch.Scope{})
	require.NoError(t, err)
	learned := result.Data["learned"].([]map[string]any)
	require.Len(t, learned, 1)
	require.Equal(t, []string{"unknown-skill"}, result.Data["missing"])
}

func TestShellExecutorRunsShortCommandSynchronously(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.AllowedCommands = []string{"echo"}
	cfg.SyncThreshold = 500_000_000 // 500ms, generous for a fast "echo"
	exec := NewShellExecutor(cfg)

	result, err := exec.ExecuteShell(context.Background(), action.KindExecuteShell, map[string]any{
		"command": "echo hi",
	}, dispatch.Scope{})
	require.NoError(t, err)
	require.Equal(t, "completed", result.Data["status"])
	require.Contains(t, result.Data["output"], "hi")
}

func TestShellExecutorRejectsDisallowedCommand(t *testing.T) {
	cfg := DefaultShellConfig()
	cfg.AllowedCommands = []string{"echo"}
	exec := NewShellExecutor(cfg)

	_, err := exec.ExecuteShell(context.Background(), action.KindExecuteShell, map[string]any{
		"command": "rm -rf /",
	}, dispatch.Scope{})
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindForbidden))
}

func TestShellExecutorCheckUnknownID(t *testing.T) {
	exec := NewShellExecutor(DefaultShellConfig())
	_, err := exec.ExecuteShell(context.Background(), action.KindExecuteShell, map[string]any{
		"check_id": "does-not-exist",
	}, dispatch.Scope{})
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindNotFound))
}
