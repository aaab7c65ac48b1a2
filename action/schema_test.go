package action

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileValidatesFullTable(t *testing.T) {
	require.NoError(t, Compile())
}

func TestEveryKindHasASchema(t *testing.T) {
	require.Len(t, AllKinds, 22)
	for _, kind := range AllKinds {
		schema, ok := Lookup(kind)
		require.True(t, ok, "missing schema for %s", kind)
		require.Equal(t, kind, schema.Kind)
	}
}

func TestExecuteShellXorGroup(t *testing.T) {
	schema, ok := Lookup(KindExecuteShell)
	require.True(t, ok)
	require.Contains(t, schema.XorParams, []string{"command", "check_id"})
}

func TestPriorityOrderMatchesSpec(t *testing.T) {
	require.Equal(t, 1, Priority[KindOrient])
	require.Equal(t, 22, Priority[KindSpawnChild])
	require.Less(t, Priority[KindWait], Priority[KindSpawnChild])
}

func TestBatchKindsExcludeWaitAndSelf(t *testing.T) {
	require.False(t, IsBatchable(KindWait))
	require.False(t, IsBatchable(KindBatchSync))
	require.False(t, IsBatchable(KindBatchAsync))
	require.True(t, IsBatchable(KindFetchWeb))
}

func TestSchemaForReflectsRequiredFields(t *testing.T) {
	schema, err := SchemaFor[SpawnChildParams]()
	require.NoError(t, err)
	require.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "profile")
	required, ok := schema["required"].([]any)
	require.True(t, ok)
	require.Contains(t, required, "profile")
	require.Contains(t, required, "initial_message")
}
