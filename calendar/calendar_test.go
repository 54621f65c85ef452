package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/tool"
)

func TestBoundary_Validate(t *testing.T) {
	tests := []struct {
		name     string
		boundary Boundary
		wantErr  bool
	}{
		{"timed", Boundary{DateTime: "2026-03-01T10:00:00Z"}, false},
		{"all day", Boundary{Date: "2026-03-01"}, false},
		{"both set", Boundary{Date: "2026-03-01", DateTime: "2026-03-01T10:00:00Z"}, true},
		{"neither set", Boundary{}, true},
		{"bad date", Boundary{Date: "March 1st"}, true},
		{"bad datetime", Boundary{DateTime: "2026-03-01 10:00"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.boundary.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	ev := Event{
		Summary: "Standup",
		Start:   Boundary{DateTime: "2026-03-01T10:00:00Z"},
		End:     Boundary{DateTime: "2026-03-01T10:15:00Z"},
	}
	assert.NoError(t, ev.Validate())

	ev.Summary = ""
	assert.Error(t, ev.Validate())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestClient(t *testing.T) (*InMemoryClient, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	client := NewInMemoryClient()
	client.Clock = fixedClock(now)
	return client, now
}

func timedEvent(summary string, start time.Time, dur time.Duration) Event {
	return Event{
		Summary: summary,
		Start:   Boundary{DateTime: start.Format(time.RFC3339)},
		End:     Boundary{DateTime: start.Add(dur).Format(time.RFC3339)},
	}
}

func TestInMemoryClient_CreateAndList(t *testing.T) {
	client, now := newTestClient(t)
	ctx := context.Background()

	later, err := client.Create(ctx, timedEvent("Dentist", now.Add(48*time.Hour), time.Hour))
	require.NoError(t, err)
	sooner, err := client.Create(ctx, timedEvent("Standup", now.Add(time.Hour), 15*time.Minute))
	require.NoError(t, err)
	_, err = client.Create(ctx, timedEvent("Retro", now.Add(-time.Hour), time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "evt-1", later.ID)
	assert.Equal(t, "confirmed", sooner.Status)

	// Past events are excluded and results come back soonest first.
	events, err := client.ListUpcoming(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Summary)
	assert.Equal(t, "Dentist", events[1].Summary)

	events, err = client.ListUpcoming(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Summary)
}

func TestInMemoryClient_ListBetween(t *testing.T) {
	client, now := newTestClient(t)
	ctx := context.Background()

	_, err := client.Create(ctx, timedEvent("Inside", now.Add(time.Hour), time.Hour))
	require.NoError(t, err)
	_, err = client.Create(ctx, timedEvent("Outside", now.Add(72*time.Hour), time.Hour))
	require.NoError(t, err)

	events, err := client.ListBetween(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Inside", events[0].Summary)
}

func TestInMemoryClient_UpdateAndDelete(t *testing.T) {
	client, now := newTestClient(t)
	ctx := context.Background()

	created, err := client.Create(ctx, timedEvent("Lunch", now.Add(3*time.Hour), time.Hour))
	require.NoError(t, err)

	updated, err := client.Update(ctx, created.ID, Event{Location: "Cafe Luna"})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", updated.Summary)
	assert.Equal(t, "Cafe Luna", updated.Location)

	_, err = client.Update(ctx, "evt-missing", Event{Summary: "nope"})
	assert.Error(t, err)

	require.NoError(t, client.Delete(ctx, created.ID))
	assert.Error(t, client.Delete(ctx, created.ID))

	events, err := client.ListUpcoming(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

type failingClient struct {
	InMemoryClient
	err error
}

func (c *failingClient) ListUpcoming(context.Context, int64) ([]Event, error) {
	return nil, c.err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingClient{err: errors.New("backend down")}
	breaker := NewBreaker(inner, func(o *BreakerOptions) {
		o.MaxFailures = 2
		o.Timeout = time.Minute
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := breaker.ListUpcoming(ctx, 5)
		require.ErrorContains(t, err, "backend down")
	}

	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := breaker.ListUpcoming(ctx, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestBreaker_PassesThroughWhenClosed(t *testing.T) {
	client, now := newTestClient(t)
	breaker := NewBreaker(client)
	ctx := context.Background()

	_, err := breaker.Create(ctx, timedEvent("Sync", now.Add(time.Hour), time.Hour))
	require.NoError(t, err)

	events, err := breaker.ListUpcoming(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
	assert.Equal(t, now, breaker.Now())
}

func toolsByName(t *testing.T, client Client) map[string]tool.Tool {
	t.Helper()
	byName := make(map[string]tool.Tool)
	for _, tl := range Tools(client) {
		byName[tl.Name()] = tl
	}
	return byName
}

func TestTools_CurrentDatetime(t *testing.T) {
	client, now := newTestClient(t)
	tools := toolsByName(t, client)

	out, err := tools["get_current_datetime"].Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, now.Format(ClockLayout), out)
}

func TestTools_CreateThenList(t *testing.T) {
	client, now := newTestClient(t)
	tools := toolsByName(t, client)
	ctx := context.Background()

	out, err := tools["create_event"].Call(ctx, map[string]any{
		"summary":         "Team sync",
		"location":        "Room 4",
		"start_date_time": now.Add(time.Hour).Format(time.RFC3339),
		"end_date_time":   now.Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	var created Event
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &created))
	assert.Equal(t, "evt-1", created.ID)
	assert.Equal(t, "Team sync", created.Summary)

	out, err = tools["list_upcoming_events"].Call(ctx, map[string]any{"max_results": float64(5)})
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Room 4", events[0].Location)
}

func TestTools_ListBetweenRange(t *testing.T) {
	client, now := newTestClient(t)
	tools := toolsByName(t, client)
	ctx := context.Background()

	_, err := client.Create(ctx, timedEvent("Inside", now.Add(time.Hour), time.Hour))
	require.NoError(t, err)

	out, err := tools["list_events_between"].Call(ctx, map[string]any{
		"start_time": now.Format(RangeLayout),
		"end_time":   now.Add(24 * time.Hour).Format(RangeLayout),
	})
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &events))
	require.Len(t, events, 1)

	_, err = tools["list_events_between"].Call(ctx, map[string]any{
		"start_time": "yesterday",
		"end_time":   now.Format(RangeLayout),
	})
	var terr *tool.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.CodeValidation, terr.Code)
}

func TestTools_CreateRejectsBadBoundaries(t *testing.T) {
	client, _ := newTestClient(t)
	tools := toolsByName(t, client)

	_, err := tools["create_event"].Call(context.Background(), map[string]any{
		"summary": "No times at all",
	})
	var terr *tool.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.CodeValidation, terr.Code)
}

func TestTools_UpdateAndDelete(t *testing.T) {
	client, now := newTestClient(t)
	tools := toolsByName(t, client)
	ctx := context.Background()

	created, err := client.Create(ctx, timedEvent("Review", now.Add(time.Hour), time.Hour))
	require.NoError(t, err)

	out, err := tools["update_event"].Call(ctx, map[string]any{
		"event_id": created.ID,
		"summary":  "Design review",
	})
	require.NoError(t, err)

	var updated Event
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &updated))
	assert.Equal(t, "Design review", updated.Summary)

	out, err = tools["delete_event"].Call(ctx, map[string]any{"event_id": created.ID})
	require.NoError(t, err)
	assert.Contains(t, out.(string), created.ID)

	_, err = tools["delete_event"].Call(ctx, map[string]any{"event_id": created.ID})
	var berr *tool.BackendError
	require.ErrorAs(t, err, &berr)
}

func TestRegister_WiresAllTools(t *testing.T) {
	client, _ := newTestClient(t)
	reg := tool.NewRegistry()

	require.NoError(t, Register(reg, client, "assistant", "calendar-executor"))

	defs := reg.Definitions("assistant")
	assert.Len(t, defs, 6)
	name, err := reg.ExecutorFor("create_event")
	require.NoError(t, err)
	assert.Equal(t, "calendar-executor", name)
}
