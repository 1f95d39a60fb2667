package graph

import (
	"fmt"
	"os"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition is the decoded content of a graph file.
type Definition struct {
	Graph     *Graph
	Knowledge []domain.Document
}

// rawNodeDef is the flat, kind-agnostic shape of a node in a graph file.
// Fields irrelevant to the declared kind must be left empty.
type rawNodeDef struct {
	ID          string          `mapstructure:"id"`
	Kind        string          `mapstructure:"kind"`
	Instruction string          `mapstructure:"instruction"`
	Variable    string          `mapstructure:"variable"`
	Next        string          `mapstructure:"next"`
	Options     []domain.Option `mapstructure:"options"`
	Compose     string          `mapstructure:"compose"`
	Threshold   *float64        `mapstructure:"threshold"`
	Above       string          `mapstructure:"above"`
	AtOrBelow   string          `mapstructure:"at_or_below"`
}

type fileDef struct {
	Entry     string            `mapstructure:"entry"`
	Nodes     []map[string]any  `mapstructure:"nodes"`
	Knowledge []domain.Document `mapstructure:"knowledge"`
}

// LoadFile reads a YAML graph definition from disk.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return LoadYAML(data)
}

// LoadYAML parses a YAML graph definition:
//
//	entry: start
//	nodes:
//	  - id: start
//	    kind: option
//	    instruction: "..."
//	    options:
//	      - {key: temp, prompt: "...", next: ask_current_temp}
//	  - id: ask_current_temp
//	    kind: capture
//	    variable: current_temp
//	    next: ask_desired_temp
//	knowledge:
//	  - {id: doc_0, text: "..."}
func LoadYAML(data []byte) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse graph yaml: %w", err)
	}

	var doc fileDef
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid graph file: %w", err)
	}

	nodes := make([]domain.Node, 0, len(doc.Nodes))
	for i, rawNode := range doc.Nodes {
		var ns rawNodeDef
		if err := decodeStrict(rawNode, &ns); err != nil {
			return nil, fmt.Errorf("invalid node #%d: %w", i, err)
		}
		n, err := ns.toNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	g, err := New(doc.Entry, nodes...)
	if err != nil {
		return nil, err
	}
	return &Definition{Graph: g, Knowledge: doc.Knowledge}, nil
}

func decodeStrict(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func (s rawNodeDef) toNode() (domain.Node, error) {
	// A node may only populate the fields of its own kind.
	conflict := func(field string) error {
		return &NodeError{NodeID: s.ID, Reason: fmt.Sprintf("field %q is not allowed for kind %q", field, s.Kind)}
	}

	switch s.Kind {
	case domain.KindCapture:
		if len(s.Options) > 0 {
			return nil, conflict("options")
		}
		return &domain.CaptureNode{ID: s.ID, Instruction: s.Instruction, Variable: s.Variable, Next: s.Next}, nil
	case domain.KindOption:
		if s.Variable != "" {
			return nil, conflict("variable")
		}
		if s.Next != "" {
			return nil, conflict("next")
		}
		return &domain.OptionNode{ID: s.ID, Instruction: s.Instruction, Options: s.Options}, nil
	case domain.KindTerminal:
		if len(s.Options) > 0 {
			return nil, conflict("options")
		}
		if s.Variable != "" {
			return nil, conflict("variable")
		}
		return &domain.TerminalNode{ID: s.ID, Instruction: s.Instruction, Compose: s.Compose}, nil
	case domain.KindBranch:
		if len(s.Options) > 0 {
			return nil, conflict("options")
		}
		if s.Threshold == nil {
			return nil, &NodeError{NodeID: s.ID, Reason: "branch node requires a threshold"}
		}
		return &domain.BranchNode{ID: s.ID, Variable: s.Variable, Threshold: *s.Threshold, Above: s.Above, AtOrBelow: s.AtOrBelow}, nil
	case "":
		return nil, &NodeError{NodeID: s.ID, Reason: "missing kind"}
	default:
		return nil, &NodeError{NodeID: s.ID, Reason: fmt.Sprintf("unknown kind %q", s.Kind)}
	}
}
