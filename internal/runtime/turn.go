package runtime

import "github.com/aretw0/dialogtree/pkg/domain"

// RenderedOption is an option of the current node prepared for display.
// Text is the generated wording; it is empty when the options were not
// rendered in this process (e.g. after Restore).
type RenderedOption struct {
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
	Text   string `json:"text,omitempty"`
}

// Turn is the observable outcome of Start or Respond.
type Turn struct {
	NodeID        string           `json:"node_id,omitempty"`
	Utterance     string           `json:"utterance,omitempty"`
	Options       []RenderedOption `json:"options,omitempty"`
	InvalidChoice bool             `json:"invalid_choice,omitempty"`
	Status        domain.Status    `json:"status"`
	// Path lists the nodes entered during the turn, silent branch nodes included.
	Path []string `json:"path,omitempty"`
}
