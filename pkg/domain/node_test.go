package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestOptionNode_Match(t *testing.T) {
	node := &domain.OptionNode{
		ID: "offer_ticket",
		Options: []domain.Option{
			{Key: "yes", Prompt: "Скажи: 'Да'", Next: "create_ticket"},
			{Key: "no", Prompt: "Скажи: 'Нет'", Next: "end"},
		},
	}

	opt, ok := node.Match("yes")
	assert.True(t, ok)
	assert.Equal(t, "create_ticket", opt.Next)

	// Matching is exact: no case folding, no trimming, no match on the prompt.
	for _, input := range []string{"Yes", " yes", "Скажи: 'Да'", ""} {
		_, ok := node.Match(input)
		assert.False(t, ok, "input %q should not match", input)
	}

	assert.Equal(t, []string{"yes", "no"}, node.Keys())
	assert.Equal(t, []string{"create_ticket", "end"}, node.Successors())
}

func TestNodeKinds(t *testing.T) {
	nodes := []domain.Node{
		&domain.CaptureNode{ID: "c", Variable: "v", Next: "n"},
		&domain.OptionNode{ID: "o"},
		&domain.TerminalNode{ID: "t"},
		&domain.BranchNode{ID: "b", Above: "x", AtOrBelow: "y"},
	}
	kinds := []string{domain.KindCapture, domain.KindOption, domain.KindTerminal, domain.KindBranch}
	for i, n := range nodes {
		assert.Equal(t, kinds[i], n.Kind())
	}
	assert.Nil(t, nodes[2].Successors())
	assert.Equal(t, []string{"x", "y"}, nodes[3].Successors())
}

func TestContext(t *testing.T) {
	c := domain.NewContext()
	_, ok := c.Get("duration")
	assert.False(t, ok)

	c.Set("duration", "1")
	c.Set("duration", "2")
	v, ok := c.Get("duration")
	assert.True(t, ok)
	assert.Equal(t, "2", v, "last write wins")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "неизвестно", c.GetOr("missing", "неизвестно"))

	snap := c.Snapshot()
	snap["duration"] = "mutated"
	v, _ = c.Get("duration")
	assert.Equal(t, "2", v, "snapshot must be a copy")
}

func TestErrors(t *testing.T) {
	fe := &domain.FormatError{Path: "$[0]", Reason: "missing role"}
	assert.ErrorIs(t, fe, domain.ErrFormat)
	assert.Contains(t, fe.Error(), "$[0]")

	cause := errors.New("connection refused")
	se := &domain.ServiceError{Collaborator: "generator", Err: cause}
	assert.ErrorIs(t, se, domain.ErrService)
	assert.ErrorIs(t, se, cause)
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "b") }}

	merged := a.Merge(b)
	merged.OnNodeEnter(context.Background(), &domain.NodeEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, merged.OnGenerate)
}

func TestBranchNode_Route(t *testing.T) {
	n := &domain.BranchNode{ID: "check", Variable: "duration", Threshold: 1, Above: "escalate", AtOrBelow: "wait"}

	tests := []struct {
		value string
		want  string
	}{
		{"1.5", "escalate"},
		{" 2 ", "escalate"},
		{"1", "wait"},
		{"0.5", "wait"},
		{"soon", "wait"},
		{"", "wait"},
		{"NaN", "wait"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.Route(tt.value), "value %q", tt.value)
	}
}
