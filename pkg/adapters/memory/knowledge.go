package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/aretw0/dialogtree/pkg/domain"
)

// KnowledgeBase is an offline ports.KnowledgeBase that ranks documents by
// word overlap (Jaccard similarity) with the query.
type KnowledgeBase struct {
	mu   sync.RWMutex
	docs []indexedDoc
}

type indexedDoc struct {
	doc   domain.Document
	terms map[string]struct{}
}

// NewKnowledgeBase creates an empty knowledge base.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{}
}

// Init replaces the corpus.
func (k *KnowledgeBase) Init(ctx context.Context, docs []domain.Document) error {
	indexed := make([]indexedDoc, 0, len(docs))
	for _, d := range docs {
		indexed = append(indexed, indexedDoc{doc: d, terms: terms(d.Text)})
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.docs = indexed
	return nil
}

// Retrieve returns up to maxResults documents sharing at least one word with
// query, best first. Ties keep corpus order.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string, maxResults int) ([]domain.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := terms(query)

	k.mu.RLock()
	defer k.mu.RUnlock()

	var out []domain.Snippet
	for _, d := range k.docs {
		if score := jaccard(q, d.terms); score > 0 {
			out = append(out, domain.Snippet{Text: d.doc.Text, Relevance: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if maxResults >= 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func terms(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}
