package openai

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/sashabaranov/go-openai"
)

// KnowledgeBase implements ports.KnowledgeBase over embeddings.
// Documents are embedded once by Init and kept in memory; queries are ranked
// by cosine similarity, clamped to [0, 1] and reported as relevance.
type KnowledgeBase struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration

	mu   sync.RWMutex
	docs []embeddedDoc
}

type embeddedDoc struct {
	doc    domain.Document
	vector []float32
}

// NewKnowledgeBase creates an empty knowledge base.
func NewKnowledgeBase(cfg Config) (*KnowledgeBase, error) {
	cfg = cfg.withDefaults()
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &KnowledgeBase{
		client:  client,
		model:   openai.EmbeddingModel(cfg.EmbeddingModel),
		timeout: cfg.Timeout,
	}, nil
}

// Init embeds docs in one request and replaces the corpus.
func (k *KnowledgeBase) Init(ctx context.Context, docs []domain.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := k.embed(ctx, texts)
	if err != nil {
		return err
	}

	embedded := make([]embeddedDoc, len(docs))
	for i, d := range docs {
		embedded[i] = embeddedDoc{doc: d, vector: vectors[i]}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.docs = embedded
	return nil
}

// Retrieve returns the maxResults documents closest to query, best first.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string, maxResults int) ([]domain.Snippet, error) {
	k.mu.RLock()
	docs := k.docs
	k.mu.RUnlock()
	if len(docs) == 0 || maxResults <= 0 {
		return nil, nil
	}

	vectors, err := k.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	q := vectors[0]

	out := make([]domain.Snippet, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Snippet{Text: d.doc.Text, Relevance: relevance(q, d.vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (k *KnowledgeBase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	resp, err := k.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: k.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if e.Index < 0 || e.Index >= len(texts) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", e.Index)
		}
		vectors[e.Index] = e.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("create embeddings: missing vector for input %d", i)
		}
	}
	return vectors, nil
}

func relevance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, cos))
}
