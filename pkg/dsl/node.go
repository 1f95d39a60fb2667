package dsl

import (
	"fmt"

	"github.com/aretw0/dialogtree/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
// The node kind is inferred at Build time from the calls made:
// Capture makes a capture node, Option an option node, Branch a branch node,
// and a node with none of them is terminal.
type NodeBuilder struct {
	id          string
	instruction string
	compose     string

	variable string
	next     string

	options []domain.Option

	branch *domain.BranchNode
}

// Say sets the instruction handed to the generator when the node is entered.
func (n *NodeBuilder) Say(instruction string) *NodeBuilder {
	n.instruction = instruction
	return n
}

// Compose replaces the static instruction with a named composition over the
// context (see domain.ComposeTicket).
func (n *NodeBuilder) Compose(template string) *NodeBuilder {
	n.compose = template
	return n
}

// Capture stores the next user reply under variable.
func (n *NodeBuilder) Capture(variable string) *NodeBuilder {
	n.variable = variable
	return n
}

// Go sets the fixed successor of a capture node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.next = target
	return n
}

// Option adds an accepted answer. Options keep their declaration order.
func (n *NodeBuilder) Option(key, prompt, target string) *NodeBuilder {
	n.options = append(n.options, domain.Option{Key: key, Prompt: prompt, Next: target})
	return n
}

// Branch turns the node into a silent numeric switch on variable:
// values strictly above threshold go to above, all others to atOrBelow.
func (n *NodeBuilder) Branch(variable string, threshold float64, above, atOrBelow string) *NodeBuilder {
	n.branch = &domain.BranchNode{
		ID:        n.id,
		Variable:  variable,
		Threshold: threshold,
		Above:     above,
		AtOrBelow: atOrBelow,
	}
	return n
}

// Build returns the node variant described by the builder.
func (n *NodeBuilder) Build() (domain.Node, error) {
	kinds := 0
	if n.branch != nil {
		kinds++
	}
	if n.variable != "" || n.next != "" {
		kinds++
	}
	if len(n.options) > 0 {
		kinds++
	}
	if kinds > 1 {
		return nil, fmt.Errorf("node %q mixes capture, option and branch settings", n.id)
	}
	if n.compose != "" && (kinds > 0) {
		return nil, fmt.Errorf("node %q: compose is only supported on terminal nodes", n.id)
	}

	switch {
	case n.branch != nil:
		return n.branch, nil
	case n.variable != "" || n.next != "":
		return &domain.CaptureNode{ID: n.id, Instruction: n.instruction, Variable: n.variable, Next: n.next}, nil
	case len(n.options) > 0:
		opts := make([]domain.Option, len(n.options))
		copy(opts, n.options)
		return &domain.OptionNode{ID: n.id, Instruction: n.instruction, Options: opts}, nil
	default:
		return &domain.TerminalNode{ID: n.id, Instruction: n.instruction, Compose: n.compose}, nil
	}
}
