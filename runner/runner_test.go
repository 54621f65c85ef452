package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/agent"
	"github.com/calassist/calassist/chat"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/memory"
	"github.com/calassist/calassist/model"
	"github.com/calassist/calassist/tool"
)

// blockOnceAgent parks its first turn until the context is cancelled and
// answers normally afterwards, signalling entry into the first turn.
type blockOnceAgent struct {
	name    string
	entered chan struct{}
	turns   int
}

func (a *blockOnceAgent) Name() string                  { return a.name }
func (a *blockOnceAgent) AcceptsHumanInput() bool       { return false }
func (a *blockOnceAgent) Handoffs() []agent.HandoffRule { return nil }
func (a *blockOnceAgent) Produce(ctx context.Context, _ agent.Turn) (core.Message, error) {
	a.turns++
	if a.turns == 1 {
		select {
		case a.entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return core.Message{}, ctx.Err()
	}
	return core.NewAgentMessage(a.name, "Done. TERMINATE"), nil
}

func textScheduler(t *testing.T, replies ...string) *chat.Scheduler {
	t.Helper()
	llm := model.NewMockModel("mock")
	for _, reply := range replies {
		llm.QueueText(reply)
	}
	coordinator := agent.NewModelAgent("assistant", llm, func(o *agent.ModelAgentOptions) {
		o.EnableStreaming = false
	})
	sched, err := chat.NewScheduler(tool.NewRegistry(), []agent.Agent{coordinator})
	require.NoError(t, err)
	return sched
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out draining events")
		}
	}
}

func TestRun_StreamsMessagesAndStatus(t *testing.T) {
	r := New(textScheduler(t, "You have 3 meetings today. TERMINATE"))
	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)

	runID, events, errs, err := r.Run(context.Background(), sess, "what's on today?")
	require.NoError(t, err)

	got := drain(t, events)
	require.NoError(t, <-errs)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventStatus, last.Type)
	assert.Equal(t, core.StatusCompleted, last.Status)
	assert.Equal(t, runID, last.RunID)

	var sawAssistant bool
	for _, ev := range got {
		if ev.Type == EventMessage && ev.Message != nil && ev.Message.Role == core.RoleAssistant {
			sawAssistant = true
			assert.Equal(t, runID, ev.Message.RunID)
		}
	}
	assert.True(t, sawAssistant)

	// Transcript: user message plus assistant reply.
	assert.Equal(t, 2, sess.Transcript.Len())
}

func TestRun_SupersedeCancelsInFlight(t *testing.T) {
	blocker := &blockOnceAgent{name: "assistant", entered: make(chan struct{}, 1)}
	sched, err := chat.NewScheduler(tool.NewRegistry(), []agent.Agent{blocker})
	require.NoError(t, err)
	r := New(sched)

	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)
	firstID, firstEvents, _, err := r.Run(context.Background(), sess, "first question")
	require.NoError(t, err)

	select {
	case <-blocker.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started producing")
	}

	// The new inbound message wins: the first run is cancelled and awaited.
	secondID, secondEvents, _, err := r.Run(context.Background(), sess, "actually, never mind")
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	drain(t, firstEvents)
	drain(t, secondEvents)
	assert.Equal(t, "", sess.ActiveRunID())
}

func TestRun_DiscardPolicyRewindsPartialOutput(t *testing.T) {
	blocker := &blockOnceAgent{name: "assistant", entered: make(chan struct{}, 1)}
	sched, err := chat.NewScheduler(tool.NewRegistry(), []agent.Agent{blocker})
	require.NoError(t, err)
	r := New(sched)

	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeDiscard)
	_, firstEvents, _, err := r.Run(context.Background(), sess, "first question")
	require.NoError(t, err)
	require.Equal(t, 1, sess.Transcript.Len())

	select {
	case <-blocker.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started producing")
	}

	_, secondEvents, _, err := r.Run(context.Background(), sess, "second question")
	require.NoError(t, err)
	drain(t, firstEvents)
	drain(t, secondEvents)

	// The superseded run's user message was rewound; only the second remains.
	msgs := sess.Transcript.Messages()
	var userTexts []string
	for _, m := range msgs {
		if m.Role == core.RoleUser {
			userTexts = append(userTexts, m.Text)
		}
	}
	assert.Equal(t, []string{"second question"}, userTexts)
}

func TestRun_SingleShotResetsTranscript(t *testing.T) {
	r := New(textScheduler(t, "First answer. TERMINATE", "Second answer. TERMINATE"))
	sess := core.NewSession("alice", core.ModeSingleShot, core.SupersedeKeep)

	_, events, _, err := r.Run(context.Background(), sess, "first")
	require.NoError(t, err)
	drain(t, events)
	require.Equal(t, 2, sess.Transcript.Len())

	_, events, _, err = r.Run(context.Background(), sess, "second")
	require.NoError(t, err)
	drain(t, events)

	msgs := sess.Transcript.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Text)
}

func TestRun_NotifiesMemory(t *testing.T) {
	store := memory.NewInMemory()
	r := New(textScheduler(t, "Noted. TERMINATE"), func(o *Options) {
		o.Memory = memory.NewAdapter(store)
	})
	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)

	_, events, _, err := r.Run(context.Background(), sess, "remember I like mornings")
	require.NoError(t, err)
	drain(t, events)

	// Memory writes are async; both the user and assistant lines should land.
	require.Eventually(t, func() bool { return store.Len("alice") == 2 },
		2*time.Second, 10*time.Millisecond)
}

// recallStore versions every Search hit so a test can tell recalls apart.
type recallStore struct {
	mu       sync.Mutex
	searches int
	added    []string
}

func (s *recallStore) Search(_ context.Context, _, _ string, _ int) ([]memory.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	return []memory.SearchResult{{Content: fmt.Sprintf("prefers mornings (v%d)", s.searches)}}, nil
}

func (s *recallStore) Add(_ context.Context, _, content string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, content)
	return nil
}

func (s *recallStore) addedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.added)
}

// memoryCaptureAgent records the memory context it was handed on each turn.
type memoryCaptureAgent struct {
	name     string
	contexts []string
}

func (a *memoryCaptureAgent) Name() string                  { return a.name }
func (a *memoryCaptureAgent) AcceptsHumanInput() bool       { return false }
func (a *memoryCaptureAgent) Handoffs() []agent.HandoffRule { return nil }
func (a *memoryCaptureAgent) Produce(_ context.Context, turn agent.Turn) (core.Message, error) {
	a.contexts = append(a.contexts, turn.MemoryContext)
	if len(a.contexts) == 1 {
		return core.NewAgentMessage(a.name, "Let me check."), nil
	}
	return core.NewAgentMessage(a.name, "All set. TERMINATE"), nil
}

func TestRun_RecallRefreshesEachTurn(t *testing.T) {
	store := &recallStore{}
	capture := &memoryCaptureAgent{name: "assistant"}
	sched, err := chat.NewScheduler(tool.NewRegistry(), []agent.Agent{capture}, func(o *chat.Options) {
		o.AllowRepeatSpeaker = true
	})
	require.NoError(t, err)

	r := New(sched, func(o *Options) {
		o.Memory = memory.NewAdapter(store)
	})
	sess := core.NewSession("alice", core.ModeMultiTurn, core.SupersedeKeep)

	_, events, errs, err := r.Run(context.Background(), sess, "when am I free?")
	require.NoError(t, err)
	drain(t, events)
	require.NoError(t, <-errs)

	// Recall ran once per speaker turn, not once per run, so the second
	// turn saw a fresher result than the first.
	require.Len(t, capture.contexts, 2)
	assert.Equal(t, "- prefers mornings (v1)", capture.contexts[0])
	assert.Equal(t, "- prefers mornings (v2)", capture.contexts[1])

	// The user line plus both assistant lines landed in the store.
	require.Eventually(t, func() bool { return store.addedCount() == 3 },
		2*time.Second, 10*time.Millisecond)
}

func TestCancel_UnknownRun(t *testing.T) {
	r := New(textScheduler(t))
	assert.Error(t, r.Cancel("nope"))
}
