package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentkit/core"
)

// InMemoryStore is a process-local core.MemoryStore ranking entries by
// keyword overlap with the query. Good enough for tests and small agents;
// swap in a vector store behind the same interface for real recall.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	id       string
	content  string
	tokens   map[string]struct{}
	metadata map[string]string
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Add implements core.MemoryStore.
func (s *InMemoryStore) Add(ctx context.Context, content string, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.NewCancelledError("memory.add", ctx)
	}

	var metaCopy map[string]string
	if metadata != nil {
		metaCopy = make(map[string]string, len(metadata))
		for k, v := range metadata {
			metaCopy[k] = v
		}
	}

	e := entry{
		id:       core.NewID(),
		content:  content,
		tokens:   tokenize(content),
		metadata: metaCopy,
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	return e.id, nil
}

// Search implements core.MemoryStore. Results are ordered by descending
// overlap score; entries with no overlap are omitted.
func (s *InMemoryStore) Search(ctx context.Context, query string, limit int) ([]core.MemoryHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCancelledError("memory.search", ctx)
	}
	if limit <= 0 {
		limit = 5
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]core.MemoryHit, 0, len(s.entries))
	for _, e := range s.entries {
		overlap := 0
		for tok := range queryTokens {
			if _, ok := e.tokens[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		hits = append(hits, core.MemoryHit{
			ID:       e.id,
			Content:  e.content,
			Score:    float64(overlap) / float64(len(queryTokens)),
			Metadata: e.metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// tokenize lower-cases and splits on non-alphanumeric runes, dropping very
// short tokens that carry no signal.
func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	}) {
		if len(field) < 2 {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}
