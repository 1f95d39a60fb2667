package domain

// Snippet is one knowledge base hit returned by a retriever.
type Snippet struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"` // in [0,1], higher is better
}

// Document is an entry loaded into a knowledge base.
type Document struct {
	ID       string            `json:"id" yaml:"id"`
	Text     string            `json:"text" yaml:"text"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
