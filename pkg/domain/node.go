package domain

import (
	"strconv"
	"strings"
)

// NodeKind constants identify the concrete node variant.
const (
	// KindCapture stores the next user reply in the context and follows a fixed link.
	KindCapture = "capture"
	// KindOption waits for one of a fixed set of canonical keys.
	KindOption = "option"
	// KindTerminal ends the guided flow.
	KindTerminal = "terminal"
	// KindBranch routes on a numeric context value without asking the user (silent step).
	KindBranch = "branch"
)

// ComposeTicket names the composite instruction built from the captured readings.
const ComposeTicket = "ticket"

// Context variables read by the ticket composition.
const (
	VarCurrentTemp = "current_temp"
	VarDesiredTemp = "desired_temp"
	VarTimeOfDay   = "time_of_day"
)

// Node is a single step of the dialog graph.
// The set of implementations is closed: CaptureNode, OptionNode, TerminalNode and BranchNode.
type Node interface {
	NodeID() string
	Kind() string
	// Successors lists every node id reachable in one step, in declaration order.
	Successors() []string
	node()
}

// CaptureNode asks a question and stores the literal reply under Variable.
type CaptureNode struct {
	ID          string `json:"id" yaml:"id"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Variable    string `json:"variable" yaml:"variable"`
	Next        string `json:"next" yaml:"next"`
}

func (n *CaptureNode) NodeID() string       { return n.ID }
func (n *CaptureNode) Kind() string         { return KindCapture }
func (n *CaptureNode) Successors() []string { return []string{n.Next} }
func (n *CaptureNode) node()                {}

// Option is one accepted answer of an OptionNode.
// Key is matched exactly against user input; Prompt is only used for display.
type Option struct {
	Key    string `json:"key" yaml:"key"`
	Prompt string `json:"prompt" yaml:"prompt"`
	Next   string `json:"next" yaml:"next"`
}

// OptionNode waits for one of its canonical option keys.
type OptionNode struct {
	ID          string   `json:"id" yaml:"id"`
	Instruction string   `json:"instruction" yaml:"instruction"`
	Options     []Option `json:"options" yaml:"options"`
}

func (n *OptionNode) NodeID() string { return n.ID }
func (n *OptionNode) Kind() string   { return KindOption }
func (n *OptionNode) node()          {}

func (n *OptionNode) Successors() []string {
	out := make([]string, 0, len(n.Options))
	for _, o := range n.Options {
		out = append(out, o.Next)
	}
	return out
}

// Match returns the option whose key equals input (case-sensitive).
func (n *OptionNode) Match(input string) (Option, bool) {
	for _, o := range n.Options {
		if o.Key == input {
			return o, true
		}
	}
	return Option{}, false
}

// Keys returns the canonical keys in declaration order.
func (n *OptionNode) Keys() []string {
	keys := make([]string, 0, len(n.Options))
	for _, o := range n.Options {
		keys = append(keys, o.Key)
	}
	return keys
}

// TerminalNode ends the guided flow after its instruction is rendered.
// Compose, when set, replaces Instruction with a text computed from the context.
type TerminalNode struct {
	ID          string `json:"id" yaml:"id"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Compose     string `json:"compose,omitempty" yaml:"compose,omitempty"`
}

func (n *TerminalNode) NodeID() string       { return n.ID }
func (n *TerminalNode) Kind() string         { return KindTerminal }
func (n *TerminalNode) Successors() []string { return nil }
func (n *TerminalNode) node()                {}

// BranchNode compares a captured value against Threshold.
// Values strictly greater than Threshold go to Above; everything else,
// including values that do not parse as a number, goes to AtOrBelow.
type BranchNode struct {
	ID        string  `json:"id" yaml:"id"`
	Variable  string  `json:"variable" yaml:"variable"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Above     string  `json:"above" yaml:"above"`
	AtOrBelow string  `json:"at_or_below" yaml:"at_or_below"`
}

func (n *BranchNode) NodeID() string       { return n.ID }
func (n *BranchNode) Kind() string         { return KindBranch }
func (n *BranchNode) Successors() []string { return []string{n.Above, n.AtOrBelow} }
func (n *BranchNode) node()                {}

// Route returns the successor for the captured value.
func (n *BranchNode) Route(value string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || !(v > n.Threshold) {
		return n.AtOrBelow
	}
	return n.Above
}
