package memory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/core"
)

func TestInMemory_AddAndSearch(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "alice", "human: I prefer morning meetings", nil))
	require.NoError(t, store.Add(ctx, "alice", "human: my dentist is Dr. Wu", nil))
	require.NoError(t, store.Add(ctx, "bob", "human: I hate mornings", nil))

	results, err := store.Search(ctx, "alice", "morning", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "morning meetings")

	// Entries are user scoped.
	results, err = store.Search(ctx, "bob", "morning", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "hate mornings")
}

func TestInMemory_SearchLimit(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Add(ctx, "alice", "meeting note", nil))
	}
	results, err := store.Search(ctx, "alice", "meeting", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestAdapter_RecallFormatsLines(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "alice", "prefers mornings", nil))
	require.NoError(t, store.Add(ctx, "alice", "works remotely on Fridays", nil))

	adapter := NewAdapter(store)
	got := adapter.Recall(ctx, "", "alice")
	assert.Contains(t, got, "- prefers mornings")
	assert.Contains(t, got, "- works remotely on Fridays")
}

type failingStore struct{}

func (failingStore) Search(context.Context, string, string, int) ([]SearchResult, error) {
	return nil, errors.New("backend down")
}
func (failingStore) Add(context.Context, string, string, map[string]any) error {
	return errors.New("backend down")
}

func TestAdapter_SwallowsFailures(t *testing.T) {
	adapter := NewAdapter(failingStore{})
	ctx := context.Background()

	// Neither call may raise; recall degrades to empty context.
	got := adapter.Recall(ctx, "anything", "alice")
	assert.Empty(t, got)
	adapter.Remember(ctx, core.NewUserMessage("r1", "hello"), "alice")
}

func TestAdapter_NilStore(t *testing.T) {
	adapter := NewAdapter(nil)
	assert.Empty(t, adapter.Recall(context.Background(), "q", "alice"))
	adapter.Remember(context.Background(), core.NewUserMessage("r1", "hello"), "alice")
}

func TestAdapter_RememberSkipsNonConversational(t *testing.T) {
	store := NewInMemory()
	adapter := NewAdapter(store)
	ctx := context.Background()

	adapter.Remember(ctx, core.NewToolResultMessage("executor", "c1", "list_upcoming_events", "3 events", nil), "alice")
	adapter.Remember(ctx, core.NewSystemNotice("[ERROR] something"), "alice")
	assert.Zero(t, store.Len("alice"))

	adapter.Remember(ctx, core.NewUserMessage("r1", "book lunch with Sam"), "alice")
	assert.Equal(t, 1, store.Len("alice"))
}

func TestHTTPClient_SearchAndAdd(t *testing.T) {
	var gotSearch searchRequest
	var gotAdd addRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/memories/search/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSearch))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": "m1", "memory": "prefers mornings", "score": 0.92},
				},
			})
		case "/v1/memories/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotAdd))
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	ctx := context.Background()

	results, err := client.Search(ctx, "alice", "meeting time", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "prefers mornings", results[0].Content)
	assert.Equal(t, "alice", gotSearch.UserID)
	assert.Equal(t, 5, gotSearch.Limit)

	err = client.Add(ctx, "alice", "human: I like window seats", map[string]any{"role": "user"})
	require.NoError(t, err)
	require.Len(t, gotAdd.Messages, 1)
	assert.Equal(t, "user", gotAdd.Messages[0].Role)
}

func TestHTTPClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.Search(context.Background(), "alice", "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
