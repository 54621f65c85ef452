package calendar

import (
	"context"
	"fmt"
	"time"
)

// Time layouts shared by the tool schemas and the backends.
const (
	// RangeLayout is the compact timestamp format accepted by ranged queries.
	RangeLayout = "2006-01-02T150405"
	// ClockLayout is the format returned by the current-datetime tool.
	ClockLayout = "2006-01-02 15:04:05-0700"
	// DateLayout is the format for all-day event boundaries.
	DateLayout = "2006-01-02"
)

// Boundary is the start or end of an event. Exactly one of Date (all-day) or
// DateTime (timed, RFC 3339) must be set.
type Boundary struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Validate enforces the exactly-one-of-Date-or-DateTime invariant and checks
// the set field parses.
func (b Boundary) Validate() error {
	switch {
	case b.Date == "" && b.DateTime == "":
		return fmt.Errorf("boundary requires date or dateTime")
	case b.Date != "" && b.DateTime != "":
		return fmt.Errorf("boundary must set exactly one of date and dateTime")
	case b.Date != "":
		if _, err := time.Parse(DateLayout, b.Date); err != nil {
			return fmt.Errorf("invalid date %q: %w", b.Date, err)
		}
	default:
		if _, err := time.Parse(time.RFC3339, b.DateTime); err != nil {
			return fmt.Errorf("invalid dateTime %q: %w", b.DateTime, err)
		}
	}
	return nil
}

// Time resolves the boundary to a point in time. All-day dates resolve to
// midnight UTC.
func (b Boundary) Time() (time.Time, error) {
	if b.Date != "" {
		return time.Parse(DateLayout, b.Date)
	}
	return time.Parse(time.RFC3339, b.DateTime)
}

// Event is the backend-neutral calendar event payload.
type Event struct {
	ID          string   `json:"id,omitempty"`
	Status      string   `json:"status,omitempty"`
	HTMLLink    string   `json:"htmlLink,omitempty"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Start       Boundary `json:"start"`
	End         Boundary `json:"end"`
	Attendees   []string `json:"attendees,omitempty"`
}

// Validate checks both boundaries and that the event has a summary.
func (e Event) Validate() error {
	if e.Summary == "" {
		return fmt.Errorf("event requires a summary")
	}
	if err := e.Start.Validate(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := e.End.Validate(); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	return nil
}

// Client abstracts the calendar backend. Implementations must be safe for
// concurrent use; the tool registry shares one client across sessions.
type Client interface {
	// ListUpcoming returns up to max events starting at or after now,
	// ordered by start time.
	ListUpcoming(ctx context.Context, max int64) ([]Event, error)

	// ListBetween returns events overlapping [start, end), ordered by start
	// time.
	ListBetween(ctx context.Context, start, end time.Time) ([]Event, error)

	// Create inserts a new event and returns it with backend-assigned fields.
	Create(ctx context.Context, ev Event) (Event, error)

	// Update patches the identified event and returns the updated version.
	Update(ctx context.Context, id string, ev Event) (Event, error)

	// Delete removes the identified event.
	Delete(ctx context.Context, id string) error

	// Now returns the backend's notion of the current time. Exposed so tests
	// and the clock tool share a single source of truth.
	Now() time.Time
}
