package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// stored is the internal representation persisted by InMemory.
type stored struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemory is a naive process-local Store keeping append-only entries per
// user with substring Search.
//
// Concurrency: protected by RWMutex.
// Search: linear scan with case-insensitive substring matching assigning a
// constant score of 1.0 to every hit. Suitable for tests and single-node
// deployments; swap for an HTTPClient against a real memory service for
// semantic retrieval.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string][]stored // user -> entries, oldest first
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string][]stored)}
}

// Search performs a simple substring match over the user's entries, newest
// first, up to limit.
func (m *InMemory) Search(_ context.Context, user, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userEntries := m.entries[user]
	results := make([]SearchResult, 0, limit)
	lowerQuery := strings.ToLower(query)
	for i := len(userEntries) - 1; i >= 0 && len(results) < limit; i-- {
		e := userEntries[i]
		if query == "" || strings.Contains(strings.ToLower(e.content), lowerQuery) {
			md := make(map[string]any, len(e.metadata))
			for k, v := range e.metadata {
				md[k] = v
			}
			results = append(results, SearchResult{ID: e.id, Content: e.content, Score: 1.0, Metadata: md})
		}
	}
	return results, nil
}

// Add appends a new entry generating a simple incremental id.
func (m *InMemory) Add(_ context.Context, user, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("mem_%d", len(m.entries[user]))
	m.entries[user] = append(m.entries[user], stored{id: id, content: content, metadata: metadata})
	return nil
}

// Len returns the number of entries stored for the user.
func (m *InMemory) Len(user string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[user])
}
