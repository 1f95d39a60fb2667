package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/dialogtree/internal/presentation/graph"
	"github.com/aretw0/dialogtree/pkg/domain"
	dialog "github.com/aretw0/dialogtree/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T) *dialog.Graph {
	t.Helper()
	g, err := dialog.New("start",
		&domain.CaptureNode{ID: "start", Instruction: "q", Variable: "temp", Next: "check"},
		&domain.BranchNode{ID: "check", Variable: "temp", Threshold: 1, Above: "offer-ticket", AtOrBelow: "end"},
		&domain.OptionNode{ID: "offer-ticket", Instruction: "o", Options: []domain.Option{
			{Key: "да", Prompt: "yes", Next: "end"},
			{Key: "\"no\"", Prompt: "no", Next: "end"},
		}},
		&domain.TerminalNode{ID: "end", Instruction: "bye"},
	)
	require.NoError(t, err)
	return g
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(testGraph(t), nil)

	for _, want := range []string{
		"graph TD\n",
		`start(("start"))`,
		`check{{"check"}}`,
		`offer_ticket{"offer-ticket"}`,
		`end(["end"])`,
		`start -- "temp" --> check`,
		`check -. "temp > 1" .-> offer_ticket`,
		`check -. "temp <= 1" .-> end`,
		`offer_ticket -- "да" --> end`,
		`offer_ticket -- "'no'" --> end`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Overlay")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(testGraph(t), &graph.GraphOverlay{
		VisitedNodes: []string{"start", "check", "start", ""},
		CurrentNode:  "offer-ticket",
	})

	assert.Equal(t, 1, strings.Count(out, "class start visited;"))
	assert.Contains(t, out, "class check visited;")
	assert.Contains(t, out, "class offer_ticket current;")
}
