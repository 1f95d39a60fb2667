package graph_test

import (
	"testing"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNodes() []domain.Node {
	return []domain.Node{
		&domain.OptionNode{ID: "start", Instruction: "hi", Options: []domain.Option{
			{Key: "go", Prompt: "say go", Next: "ask"},
		}},
		&domain.CaptureNode{ID: "ask", Instruction: "how long?", Variable: "duration", Next: "check"},
		&domain.BranchNode{ID: "check", Variable: "duration", Threshold: 1, Above: "end", AtOrBelow: "end"},
		&domain.TerminalNode{ID: "end", Instruction: "bye"},
	}
}

func TestNew_Valid(t *testing.T) {
	g, err := graph.New("", sampleNodes()...)
	require.NoError(t, err)

	assert.Equal(t, "start", g.Entry())
	assert.Equal(t, "start", g.Initial().NodeID())

	n, err := g.Lookup("ask")
	require.NoError(t, err)
	assert.Equal(t, domain.KindCapture, n.Kind())

	ids := make([]string, 0)
	for _, n := range g.Nodes() {
		ids = append(ids, n.NodeID())
	}
	assert.Equal(t, []string{"start", "ask", "check", "end"}, ids, "declaration order is kept")
	assert.Equal(t, []string{"ask", "check", "end", "start"}, g.IDs())
}

func TestLookup_NotFound(t *testing.T) {
	g := graph.MustNew("", sampleNodes()...)
	_, err := g.Lookup("missing")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		entry  string
		nodes  []domain.Node
		reason string
	}{
		{
			name:   "Missing entry",
			entry:  "nowhere",
			nodes:  sampleNodes(),
			reason: "entry node",
		},
		{
			name:   "Dangling transition",
			nodes:  []domain.Node{&domain.CaptureNode{ID: "start", Variable: "v", Next: "ghost"}},
			reason: "ghost",
		},
		{
			name:   "Capture without variable",
			nodes:  []domain.Node{&domain.CaptureNode{ID: "start", Next: "start"}},
			reason: "requires a variable",
		},
		{
			name:   "Option node without options",
			nodes:  []domain.Node{&domain.OptionNode{ID: "start"}},
			reason: "at least one option",
		},
		{
			name: "Duplicate option key",
			nodes: []domain.Node{
				&domain.OptionNode{ID: "start", Options: []domain.Option{
					{Key: "a", Next: "start"}, {Key: "a", Next: "start"},
				}},
			},
			reason: "duplicate option key",
		},
		{
			name: "Duplicate node",
			nodes: []domain.Node{
				&domain.TerminalNode{ID: "start"},
				&domain.TerminalNode{ID: "start"},
			},
			reason: "duplicate node ID",
		},
		{
			name:   "Unknown compose",
			nodes:  []domain.Node{&domain.TerminalNode{ID: "start", Compose: "weather"}},
			reason: "unknown compose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.New(tt.entry, tt.nodes...)
			require.Error(t, err)

			var verr *graph.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { graph.MustNew("start") })
}
