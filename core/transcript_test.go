package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/internal/testutil"
)

func TestTranscript_AppendAndOrder(t *testing.T) {
	tr := testutil.Transcript(
		testutil.UserText("book lunch"),
		testutil.AssistantText("assistant", "when works for you?"),
	)

	require.Equal(t, 2, tr.Len())
	msgs := tr.Messages()
	assert.Equal(t, "book lunch", msgs[0].Text)
	assert.Equal(t, "when works for you?", msgs[1].Text)

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, "assistant", last.Speaker)
}

func TestTranscript_MessagesReturnsCopy(t *testing.T) {
	tr := testutil.Transcript(testutil.UserText("hello"))

	msgs := tr.Messages()
	msgs[0].Text = "mutated"

	fresh := tr.Messages()
	assert.Equal(t, "hello", fresh[0].Text)
}

func TestTranscript_PendingCalls(t *testing.T) {
	tr := testutil.Transcript(
		testutil.CallRequest("assistant", "call-1", "create_event", `{"summary":"standup"}`),
	)

	pending := tr.PendingCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "call-1", pending[0].ID)

	tr.Append(testutil.CallResult("executor", "call-1", "create_event", "evt-1"))
	assert.Empty(t, tr.PendingCalls())
}

func TestTranscript_PendingCallsKeepRequestOrder(t *testing.T) {
	tr := testutil.Transcript(
		testutil.CallRequest("assistant", "call-1", "list_upcoming_events", "{}"),
		testutil.CallRequest("assistant", "call-2", "get_current_datetime", "{}"),
	)

	pending := tr.PendingCalls()
	require.Len(t, pending, 2)
	assert.Equal(t, "call-1", pending[0].ID)
	assert.Equal(t, "call-2", pending[1].ID)

	tr.Append(testutil.CallResult("executor", "call-1", "list_upcoming_events", "[]"))
	pending = tr.PendingCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "call-2", pending[0].ID)
}

func TestTranscript_Rewind(t *testing.T) {
	tr := testutil.Transcript(
		testutil.UserText("first"),
		testutil.AssistantText("assistant", "partial answer"),
		testutil.AssistantText("assistant", "more partial output"),
	)

	tr.Rewind(1)
	require.Equal(t, 1, tr.Len())
	last, _ := tr.Last()
	assert.Equal(t, "first", last.Text)

	// Out-of-range rewinds are ignored.
	tr.Rewind(5)
	assert.Equal(t, 1, tr.Len())
	tr.Rewind(-1)
	assert.Equal(t, 1, tr.Len())
}

func TestTranscript_Reset(t *testing.T) {
	tr := testutil.Transcript(testutil.UserText("hello"))
	tr.Reset()

	assert.Equal(t, 0, tr.Len())
	_, ok := tr.Last()
	assert.False(t, ok)
}

func TestHistory_IncludesSystemNotices(t *testing.T) {
	tr := testutil.Transcript(testutil.UserText("hello"))
	tr.Append(core.NewSystemNotice("[ERROR] tool failed, retrying"))

	history := tr.History()
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleSystem, history[1].Role)
}
