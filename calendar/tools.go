package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calassist/calassist/tool"
)

// Tools returns the registry-ready tool set over the given client. Results
// are JSON encoded so model-backed agents can read them back verbatim.
func Tools(client Client) []tool.Tool {
	return []tool.Tool{
		currentDatetimeTool(client),
		listUpcomingTool(client),
		listBetweenTool(client),
		createEventTool(client),
		updateEventTool(client),
		deleteEventTool(client),
	}
}

// Register wires the full tool set into a registry under one caller/executor
// capability pair.
func Register(reg *tool.Registry, client Client, caller, executor string) error {
	for _, t := range Tools(client) {
		if err := reg.Register(t, caller, executor); err != nil {
			return err
		}
	}
	return nil
}

func currentDatetimeTool(client Client) tool.Tool {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	return tool.NewFuncTool(
		"get_current_datetime",
		"Get the current local date and time, including the UTC offset.",
		params,
		func(_ context.Context, _ map[string]any) (any, error) {
			return client.Now().Format(ClockLayout), nil
		},
	)
}

func listUpcomingTool(client Client) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of events to return (default 10)",
			},
		},
	}
	return tool.NewFuncTool(
		"list_upcoming_events",
		"List the user's next calendar events, soonest first.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			max := int64(10)
			if v, ok := args["max_results"].(float64); ok && v > 0 {
				max = int64(v)
			}
			events, err := client.ListUpcoming(ctx, max)
			if err != nil {
				return nil, &tool.BackendError{Tool: "list_upcoming_events", Err: err}
			}
			return encodeEvents(events)
		},
	)
}

func listBetweenTool(client Client) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start_time": map[string]any{
				"type":        "string",
				"description": "Start of the range, format 2006-01-02T150405",
			},
			"end_time": map[string]any{
				"type":        "string",
				"description": "End of the range, format 2006-01-02T150405",
			},
		},
		"required": []string{"start_time", "end_time"},
	}
	return tool.NewFuncTool(
		"list_events_between",
		"List calendar events between two timestamps.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			start, err := time.Parse(RangeLayout, args["start_time"].(string))
			if err != nil {
				return nil, tool.NewError("list_events_between",
					fmt.Sprintf("invalid start_time: %v", err), tool.CodeValidation)
			}
			end, err := time.Parse(RangeLayout, args["end_time"].(string))
			if err != nil {
				return nil, tool.NewError("list_events_between",
					fmt.Sprintf("invalid end_time: %v", err), tool.CodeValidation)
			}
			events, err := client.ListBetween(ctx, start, end)
			if err != nil {
				return nil, &tool.BackendError{Tool: "list_events_between", Err: err}
			}
			return encodeEvents(events)
		},
	)
}

func eventFieldProperties() map[string]any {
	return map[string]any{
		"summary": map[string]any{
			"type":        "string",
			"description": "Event title",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "Longer event description",
		},
		"location": map[string]any{
			"type":        "string",
			"description": "Where the event takes place",
		},
		"start_date_time": map[string]any{
			"type":        "string",
			"description": "Start as RFC 3339 timestamp, for timed events",
		},
		"end_date_time": map[string]any{
			"type":        "string",
			"description": "End as RFC 3339 timestamp, for timed events",
		},
		"start_date": map[string]any{
			"type":        "string",
			"description": "Start date (2006-01-02), for all-day events",
		},
		"end_date": map[string]any{
			"type":        "string",
			"description": "End date (2006-01-02), for all-day events",
		},
		"attendees": map[string]any{
			"type":        "array",
			"description": "Attendee email addresses",
			"items":       map[string]any{"type": "string"},
		},
	}
}

func createEventTool(client Client) tool.Tool {
	params := map[string]any{
		"type":       "object",
		"properties": eventFieldProperties(),
		"required":   []string{"summary"},
	}
	return tool.NewFuncTool(
		"create_event",
		"Create a new calendar event. Timed events need start_date_time and end_date_time; all-day events need start_date and end_date.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			ev := eventFromArgs(args)
			if err := ev.Validate(); err != nil {
				return nil, tool.NewError("create_event", err.Error(), tool.CodeValidation)
			}
			created, err := client.Create(ctx, ev)
			if err != nil {
				return nil, &tool.BackendError{Tool: "create_event", Err: err}
			}
			return encodeEvent(created)
		},
	)
}

func updateEventTool(client Client) tool.Tool {
	props := eventFieldProperties()
	props["event_id"] = map[string]any{
		"type":        "string",
		"description": "ID of the event to update",
	}
	params := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"event_id"},
	}
	return tool.NewFuncTool(
		"update_event",
		"Update fields of an existing calendar event. Omitted fields keep their current value.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			id := args["event_id"].(string)
			updated, err := client.Update(ctx, id, eventFromArgs(args))
			if err != nil {
				return nil, &tool.BackendError{Tool: "update_event", Err: err}
			}
			return encodeEvent(updated)
		},
	)
}

func deleteEventTool(client Client) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_id": map[string]any{
				"type":        "string",
				"description": "ID of the event to delete",
			},
		},
		"required": []string{"event_id"},
	}
	return tool.NewFuncTool(
		"delete_event",
		"Delete a calendar event by its ID.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			id := args["event_id"].(string)
			if err := client.Delete(ctx, id); err != nil {
				return nil, &tool.BackendError{Tool: "delete_event", Err: err}
			}
			return fmt.Sprintf("event %s deleted", id), nil
		},
	)
}

// eventFromArgs maps validated tool arguments onto an Event payload.
func eventFromArgs(args map[string]any) Event {
	ev := Event{}
	if v, ok := args["summary"].(string); ok {
		ev.Summary = v
	}
	if v, ok := args["description"].(string); ok {
		ev.Description = v
	}
	if v, ok := args["location"].(string); ok {
		ev.Location = v
	}
	if v, ok := args["start_date_time"].(string); ok && v != "" {
		ev.Start.DateTime = v
	}
	if v, ok := args["end_date_time"].(string); ok && v != "" {
		ev.End.DateTime = v
	}
	if v, ok := args["start_date"].(string); ok && v != "" {
		ev.Start.Date = v
	}
	if v, ok := args["end_date"].(string); ok && v != "" {
		ev.End.Date = v
	}
	if raw, ok := args["attendees"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				ev.Attendees = append(ev.Attendees, s)
			}
		}
	}
	return ev
}

func encodeEvents(events []Event) (string, error) {
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return string(data), nil
}

func encodeEvent(ev Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(data), nil
}
