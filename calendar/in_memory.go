package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryClient is a process-local Client for tests and development. Events
// are held in insertion order and sorted per query.
type InMemoryClient struct {
	mu     sync.RWMutex
	events []Event
	nextID int
	// Clock overrides Now, nil means wall clock.
	Clock func() time.Time
}

// NewInMemoryClient creates an empty in-memory calendar.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{nextID: 1}
}

// Now implements Client.
func (c *InMemoryClient) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// ListUpcoming implements Client.
func (c *InMemoryClient) ListUpcoming(_ context.Context, max int64) ([]Event, error) {
	now := c.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Event
	for _, ev := range c.events {
		start, err := ev.Start.Time()
		if err != nil {
			continue
		}
		if !start.Before(now) {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	if max > 0 && int64(len(out)) > max {
		out = out[:max]
	}
	return out, nil
}

// ListBetween implements Client.
func (c *InMemoryClient) ListBetween(_ context.Context, start, end time.Time) ([]Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Event
	for _, ev := range c.events {
		evStart, err := ev.Start.Time()
		if err != nil {
			continue
		}
		if !evStart.Before(start) && evStart.Before(end) {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out, nil
}

// Create implements Client.
func (c *InMemoryClient) Create(_ context.Context, ev Event) (Event, error) {
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ev.ID = fmt.Sprintf("evt-%d", c.nextID)
	ev.Status = "confirmed"
	c.nextID++
	c.events = append(c.events, ev)
	return ev, nil
}

// Update implements Client. Zero-valued fields on ev keep their current value.
func (c *InMemoryClient) Update(_ context.Context, id string, ev Event) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.events {
		if c.events[i].ID != id {
			continue
		}
		cur := c.events[i]
		if ev.Summary != "" {
			cur.Summary = ev.Summary
		}
		if ev.Description != "" {
			cur.Description = ev.Description
		}
		if ev.Location != "" {
			cur.Location = ev.Location
		}
		if ev.Start != (Boundary{}) {
			if err := ev.Start.Validate(); err != nil {
				return Event{}, fmt.Errorf("start: %w", err)
			}
			cur.Start = ev.Start
		}
		if ev.End != (Boundary{}) {
			if err := ev.End.Validate(); err != nil {
				return Event{}, fmt.Errorf("end: %w", err)
			}
			cur.End = ev.End
		}
		if ev.Attendees != nil {
			cur.Attendees = ev.Attendees
		}
		c.events[i] = cur
		return cur, nil
	}
	return Event{}, fmt.Errorf("event %q not found", id)
}

// Delete implements Client.
func (c *InMemoryClient) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ev := range c.events {
		if ev.ID == id {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("event %q not found", id)
}

func sortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		si, _ := events[i].Start.Time()
		sj, _ := events[j].Start.Time()
		return si.Before(sj)
	})
}
