package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/dialogtree/pkg/adapters/memory"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/flows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeBase_Retrieve(t *testing.T) {
	kb := memory.NewKnowledgeBase()
	ctx := context.Background()
	require.NoError(t, kb.Init(ctx, flows.ThermostatKnowledge()))

	got, err := kb.Retrieve(ctx, "Калибровка термостата", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "Калибровка термостата")
	assert.Greater(t, got[0].Relevance, 0.0)
	assert.LessOrEqual(t, got[0].Relevance, 1.0)

	got, err = kb.Retrieve(ctx, "термостат", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Relevance, got[i].Relevance)
	}

	got, err = kb.Retrieve(ctx, "xyz", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKnowledgeBase_InitReplaces(t *testing.T) {
	kb := memory.NewKnowledgeBase()
	ctx := context.Background()
	require.NoError(t, kb.Init(ctx, []domain.Document{{ID: "a", Text: "alpha beta"}}))
	require.NoError(t, kb.Init(ctx, []domain.Document{{ID: "b", Text: "gamma"}}))

	got, err := kb.Retrieve(ctx, "alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = kb.Retrieve(ctx, "Gamma!", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Relevance)
}

func TestKnowledgeBase_Canceled(t *testing.T) {
	kb := memory.NewKnowledgeBase()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := kb.Retrieve(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
