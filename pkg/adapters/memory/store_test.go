package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/dialogtree/pkg/adapters/memory"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	tests.SessionStoreContractTest(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	state := domain.NewState("s")
	state.Context["duration"] = "2"
	require.NoError(t, store.Save(ctx, "s", state))
	state.Context["duration"] = "0"

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "2", loaded.Context["duration"])

	tree := history.New()
	tree.Append(history.RoleSystem, "hello", false)
	require.NoError(t, store.SaveHistory(ctx, "s", tree))
	tree.Append(history.RoleUser, "later", false)

	got, err := store.LoadHistory(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}
