package ports

import (
	"context"

	"github.com/aretw0/dialogtree/pkg/domain"
)

// Retriever looks up knowledge relevant to a free-text query.
// Implementations must not retain or mutate engine state and may return an empty list.
type Retriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) ([]domain.Snippet, error)
}

// KnowledgeBase is a Retriever whose corpus is loaded by the host.
// Init replaces the corpus and is meant to be called once per process.
type KnowledgeBase interface {
	Retriever
	Init(ctx context.Context, docs []domain.Document) error
}

// Generator produces a single utterance for a fully composed prompt.
// Implementations must not retry in a way that hides duplicate side effects.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, query string, maxResults int) ([]domain.Snippet, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, query string, maxResults int) ([]domain.Snippet, error) {
	return f(ctx, query, maxResults)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
