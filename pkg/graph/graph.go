package graph

import (
	"fmt"
	"sort"

	"github.com/aretw0/dialogtree/pkg/domain"
)

// DefaultEntry is the id of the entry node when none is given.
const DefaultEntry = "start"

// Graph is an immutable dialog definition.
// It is safe to share one Graph between any number of sessions.
type Graph struct {
	entry string
	nodes map[string]domain.Node
	order []string
}

// New validates nodes and builds a graph whose entry point is entry
// (DefaultEntry when empty). Nodes are kept in the given order for listing.
func New(entry string, nodes ...domain.Node) (*Graph, error) {
	if entry == "" {
		entry = DefaultEntry
	}

	g := &Graph{
		entry: entry,
		nodes: make(map[string]domain.Node, len(nodes)),
	}

	var errs []error
	for _, n := range nodes {
		if n == nil {
			errs = append(errs, fmt.Errorf("nil node"))
			continue
		}
		id := n.NodeID()
		if id == "" {
			errs = append(errs, fmt.Errorf("node missing ID"))
			continue
		}
		if _, dup := g.nodes[id]; dup {
			errs = append(errs, &NodeError{NodeID: id, Reason: "duplicate node ID"})
			continue
		}
		g.nodes[id] = n
		g.order = append(g.order, id)
	}

	for _, id := range g.order {
		errs = append(errs, g.validateNode(g.nodes[id])...)
	}

	if _, ok := g.nodes[entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q: %w", entry, domain.ErrNodeNotFound))
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return g, nil
}

// MustNew is like New but panics on invalid definitions.
// It is intended for graphs compiled into the binary.
func MustNew(entry string, nodes ...domain.Node) *Graph {
	g, err := New(entry, nodes...)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) validateNode(n domain.Node) []error {
	var errs []error
	id := n.NodeID()

	switch node := n.(type) {
	case *domain.CaptureNode:
		if node.Variable == "" {
			errs = append(errs, &NodeError{NodeID: id, Reason: "capture node requires a variable"})
		}
		if node.Next == "" {
			errs = append(errs, &NodeError{NodeID: id, Reason: "capture node requires a successor"})
		}
	case *domain.OptionNode:
		if len(node.Options) == 0 {
			errs = append(errs, &NodeError{NodeID: id, Reason: "option node requires at least one option"})
		}
		seen := make(map[string]bool, len(node.Options))
		for _, o := range node.Options {
			if o.Key == "" {
				errs = append(errs, &NodeError{NodeID: id, Reason: "option with empty key"})
			} else if seen[o.Key] {
				errs = append(errs, &NodeError{NodeID: id, Reason: fmt.Sprintf("duplicate option key %q", o.Key)})
			}
			seen[o.Key] = true
			if o.Next == "" {
				errs = append(errs, &NodeError{NodeID: id, Reason: fmt.Sprintf("option %q has no successor", o.Key)})
			}
		}
	case *domain.TerminalNode:
		if node.Compose != "" && node.Compose != domain.ComposeTicket {
			errs = append(errs, &NodeError{NodeID: id, Reason: fmt.Sprintf("unknown compose template %q", node.Compose)})
		}
	case *domain.BranchNode:
		if node.Variable == "" {
			errs = append(errs, &NodeError{NodeID: id, Reason: "branch node requires a variable"})
		}
		if node.Above == "" || node.AtOrBelow == "" {
			errs = append(errs, &NodeError{NodeID: id, Reason: "branch node requires both successors"})
		}
	default:
		errs = append(errs, &NodeError{NodeID: id, Reason: fmt.Sprintf("unsupported node type %T", n)})
	}

	for _, next := range n.Successors() {
		if next == "" {
			continue
		}
		if _, ok := g.nodes[next]; !ok {
			errs = append(errs, &NodeError{NodeID: id, Reason: fmt.Sprintf("transition to %q", next), Err: domain.ErrNodeNotFound})
		}
	}
	return errs
}

// Lookup returns the node with the given id.
// It fails with an error wrapping domain.ErrNodeNotFound if absent.
func (g *Graph) Lookup(id string) (domain.Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// Initial returns the designated entry node.
func (g *Graph) Initial() domain.Node {
	return g.nodes[g.entry]
}

// Entry returns the id of the entry node.
func (g *Graph) Entry() string { return g.entry }

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// IDs returns the node ids in lexical order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	sort.Strings(ids)
	return ids
}
