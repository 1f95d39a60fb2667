package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/graph"
)

// GraphOverlay contains session data to highlight on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart for g.
// Shapes follow the node kind:
//   - entry: ((Circle))
//   - option: {Rhombus}
//   - branch: {{Hexagon}}
//   - terminal: ([Stadium])
//   - capture: [/Parallelogram/]
func GenerateMermaid(g *graph.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		id := node.NodeID()
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == g.Entry():
			opener, closer = "((", "))"
		case node.Kind() == domain.KindOption:
			opener, closer = "{", "}"
		case node.Kind() == domain.KindBranch:
			opener, closer = "{{", "}}"
		case node.Kind() == domain.KindTerminal:
			opener, closer = "([", "])"
		case node.Kind() == domain.KindCapture:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, id, closer)

		switch n := node.(type) {
		case *domain.CaptureNode:
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, quote(n.Variable), sanitizeMermaidID(n.Next))
		case *domain.OptionNode:
			for _, o := range n.Options {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, quote(o.Key), sanitizeMermaidID(o.Next))
			}
		case *domain.BranchNode:
			fmt.Fprintf(&sb, "    %s -. \"%s > %g\" .-> %s\n", safeID, quote(n.Variable), n.Threshold, sanitizeMermaidID(n.Above))
			fmt.Fprintf(&sb, "    %s -. \"%s <= %g\" .-> %s\n", safeID, quote(n.Variable), n.Threshold, sanitizeMermaidID(n.AtOrBelow))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_").Replace(id)
}
