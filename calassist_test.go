package calassist

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/calendar"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/model"
	"github.com/calassist/calassist/runner"
)

func TestSendSync_ToolCallRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cal := calendar.NewInMemoryClient()
	cal.Clock = func() time.Time { return now }

	args, err := json.Marshal(map[string]any{
		"summary":         "Lunch with Sam",
		"start_date_time": now.Add(3 * time.Hour).Format(time.RFC3339),
		"end_date_time":   now.Add(4 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	llm := model.NewMockModel("mock").
		QueueCall(core.ToolCall{ID: "call-1", Name: "create_event", Arguments: string(args)}).
		QueueText("Booked lunch with Sam at noon. TERMINATE")

	assistant, err := New(llm, cal, func(o *Options) {
		o.EnableStreaming = false
	})
	require.NoError(t, err)

	sess := assistant.OpenSession("alice")
	_, events, err := assistant.SendSync(context.Background(), sess, "book lunch with Sam at noon")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, runner.EventStatus, last.Type)
	assert.Equal(t, core.StatusCompleted, last.Status)

	// The executor ran the call against the calendar backend.
	created, err := cal.ListUpcoming(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Lunch with Sam", created[0].Summary)

	var sawResult bool
	for _, ev := range events {
		if ev.Type == runner.EventMessage && ev.Message.IsResult() {
			sawResult = true
			assert.Equal(t, "call-1", ev.Message.Result.CallID)
		}
	}
	assert.True(t, sawResult)
}

func TestSendSync_PlainAnswer(t *testing.T) {
	llm := model.NewMockModel("mock").
		QueueText("You have no meetings today. TERMINATE")

	assistant, err := New(llm, calendar.NewInMemoryClient(), func(o *Options) {
		o.EnableStreaming = false
	})
	require.NoError(t, err)

	sess := assistant.OpenSession("alice")
	_, events, err := assistant.SendSync(context.Background(), sess, "anything today?")
	require.NoError(t, err)

	var text string
	for _, ev := range events {
		if ev.Type == runner.EventMessage && ev.Message.Role == core.RoleAssistant {
			text = ev.Message.Text
		}
	}
	assert.Contains(t, text, "no meetings")
	assert.Equal(t, 2, sess.Transcript.Len())
}
