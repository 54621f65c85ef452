package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
)

// SearchResult is one recalled memory entry.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Store is the persistence backend behind the Adapter. Implementations must
// scope entries per user key.
type Store interface {
	// Search returns entries relevant to query for the given user, best first.
	Search(ctx context.Context, user, query string, limit int) ([]SearchResult, error)

	// Add persists one memory entry for the given user.
	Add(ctx context.Context, user, content string, metadata map[string]any) error
}

// AdapterOptions configure an Adapter.
type AdapterOptions struct {
	// Limit caps the number of recalled entries injected into a prompt.
	Limit  int
	Logger logging.Logger
}

// Adapter gives the dispatch loop a forgiving view of the Store: Recall
// returns prompt-ready context (empty on any failure) and Remember records
// messages without ever raising. Construct one instance at startup and share
// it; it holds no per-session state.
type Adapter struct {
	store Store
	opts  AdapterOptions
}

// NewAdapter wraps a store. A nil store yields an adapter that recalls
// nothing and records nothing, which keeps call sites branch-free.
func NewAdapter(store Store, optFns ...func(o *AdapterOptions)) *Adapter {
	opts := AdapterOptions{
		Limit:  5,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{store: store, opts: opts}
}

// Recall searches for context relevant to query and formats it for prompt
// injection, one entry per line. Failures are logged and yield "".
func (a *Adapter) Recall(ctx context.Context, query, user string) string {
	if a == nil || a.store == nil {
		return ""
	}
	results, err := a.store.Search(ctx, user, query, a.opts.Limit)
	if err != nil {
		a.opts.Logger.Warn("memory.recall.failed", "user", user, "error", err.Error())
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "- "+r.Content)
	}
	a.opts.Logger.Debug("memory.recall.hit", "user", user, "entries", len(results))
	return strings.Join(lines, "\n")
}

// Remember records one exchanged message. Failures are logged and dropped.
// Tool results and scheduler notices are skipped; only conversational text
// is worth keeping.
func (a *Adapter) Remember(ctx context.Context, msg core.Message, user string) {
	if a == nil || a.store == nil {
		return
	}
	if msg.Text == "" || (msg.Role != core.RoleUser && msg.Role != core.RoleAssistant) {
		return
	}
	content := fmt.Sprintf("%s: %s", msg.Speaker, msg.Text)
	metadata := map[string]any{"role": string(msg.Role), "message_id": msg.ID}
	if err := a.store.Add(ctx, user, content, metadata); err != nil {
		a.opts.Logger.Warn("memory.remember.failed", "user", user, "error", err.Error())
	}
}
