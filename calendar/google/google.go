// Package google implements the calendar client against the Google Calendar
// API. Credentials come from an OAuth installed-app flow with a cached token
// file, so a long-running process only needs the browser dance once.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/calassist/calassist/calendar"
	"github.com/calassist/calassist/logging"
)

// DefaultCalendarID targets the account's primary calendar.
const DefaultCalendarID = "primary"

var scopes = []string{gcal.CalendarReadonlyScope, gcal.CalendarEventsScope}

// AuthPrompt asks the operator to visit an authorization URL and return the
// resulting code. It is only invoked when no cached token can be used.
type AuthPrompt func(authURL string) (code string, err error)

// Options configures the Google Calendar client.
type Options struct {
	// CredentialsFile is the OAuth client secret JSON downloaded from the
	// Google Cloud console.
	CredentialsFile string

	// TokenFile caches the user token between runs.
	TokenFile string

	// CalendarID selects which calendar to operate on.
	CalendarID string

	// Prompt handles the interactive authorization fallback. Leaving it nil
	// makes New fail when the cached token is missing or unusable.
	Prompt AuthPrompt

	// Clock reports the current time. Defaults to time.Now.
	Clock func() time.Time

	Logger logging.Logger
}

// Client talks to the Google Calendar API.
type Client struct {
	svc  *gcal.Service
	opts Options
}

var _ calendar.Client = (*Client)(nil)

// New builds an authenticated client. Token resolution order is cached token
// file, then silent refresh through the token source, then the interactive
// prompt.
func New(ctx context.Context, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
		CalendarID:      DefaultCalendarID,
		Clock:           time.Now,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	raw, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	config, err := oauthgoogle.ConfigFromJSON(raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := resolveToken(ctx, config, opts)
	if err != nil {
		return nil, err
	}

	// Persist tokens the source refreshes so the next run stays silent.
	source := &savingTokenSource{
		inner:  config.TokenSource(ctx, token),
		path:   opts.TokenFile,
		logger: opts.Logger,
		last:   token,
	}
	svc, err := gcal.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &Client{svc: svc, opts: opts}, nil
}

func resolveToken(ctx context.Context, config *oauth2.Config, opts Options) (*oauth2.Token, error) {
	token, err := tokenFromFile(opts.TokenFile)
	if err == nil {
		if token.Valid() {
			return token, nil
		}
		if token.RefreshToken != "" {
			refreshed, err := config.TokenSource(ctx, token).Token()
			if err == nil {
				opts.Logger.Info("calendar.google.token.refreshed")
				_ = saveToken(opts.TokenFile, refreshed)
				return refreshed, nil
			}
			opts.Logger.Warn("calendar.google.token.refresh_failed", "error", err)
		}
	}

	if opts.Prompt == nil {
		return nil, fmt.Errorf("no usable token in %s and no auth prompt configured", opts.TokenFile)
	}
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := opts.Prompt(authURL)
	if err != nil {
		return nil, fmt.Errorf("authorization prompt: %w", err)
	}
	token, err = config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(opts.TokenFile, token); err != nil {
		opts.Logger.Warn("calendar.google.token.save_failed", "error", err)
	}
	return token, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// savingTokenSource writes refreshed tokens back to the cache file.
type savingTokenSource struct {
	inner  oauth2.TokenSource
	path   string
	logger logging.Logger
	last   *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.inner.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		s.last = token
		if err := saveToken(s.path, token); err != nil {
			s.logger.Warn("calendar.google.token.save_failed", "error", err)
		}
	}
	return token, nil
}

// Now reports the current time in the configured clock's location.
func (c *Client) Now() time.Time {
	return c.opts.Clock()
}

// ListUpcoming returns events starting at or after now, soonest first.
func (c *Client) ListUpcoming(ctx context.Context, max int64) ([]calendar.Event, error) {
	if max <= 0 {
		max = 10
	}
	list, err := c.svc.Events.List(c.opts.CalendarID).
		Context(ctx).
		TimeMin(c.Now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(max).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return fromAPIList(list.Items), nil
}

// ListBetween returns events starting within [start, end).
func (c *Client) ListBetween(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	list, err := c.svc.Events.List(c.opts.CalendarID).
		Context(ctx).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events between: %w", err)
	}
	return fromAPIList(list.Items), nil
}

// Create inserts a new event.
func (c *Client) Create(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if err := ev.Validate(); err != nil {
		return calendar.Event{}, err
	}
	created, err := c.svc.Events.Insert(c.opts.CalendarID, toAPI(ev)).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, fmt.Errorf("create event: %w", err)
	}
	return fromAPI(created), nil
}

// Update patches the non-zero fields of ev onto the stored event.
func (c *Client) Update(ctx context.Context, id string, ev calendar.Event) (calendar.Event, error) {
	patch := &gcal.Event{}
	if ev.Summary != "" {
		patch.Summary = ev.Summary
	}
	if ev.Description != "" {
		patch.Description = ev.Description
	}
	if ev.Location != "" {
		patch.Location = ev.Location
	}
	if ev.Start.Date != "" || ev.Start.DateTime != "" {
		if err := ev.Start.Validate(); err != nil {
			return calendar.Event{}, fmt.Errorf("start: %w", err)
		}
		patch.Start = boundaryToAPI(ev.Start)
	}
	if ev.End.Date != "" || ev.End.DateTime != "" {
		if err := ev.End.Validate(); err != nil {
			return calendar.Event{}, fmt.Errorf("end: %w", err)
		}
		patch.End = boundaryToAPI(ev.End)
	}
	for _, email := range ev.Attendees {
		patch.Attendees = append(patch.Attendees, &gcal.EventAttendee{Email: email})
	}

	updated, err := c.svc.Events.Patch(c.opts.CalendarID, id, patch).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	return fromAPI(updated), nil
}

// Delete removes an event by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.opts.CalendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func toAPI(ev calendar.Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       boundaryToAPI(ev.Start),
		End:         boundaryToAPI(ev.End),
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}

func boundaryToAPI(b calendar.Boundary) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		Date:     b.Date,
		DateTime: b.DateTime,
		TimeZone: b.TimeZone,
	}
}

func fromAPI(ev *gcal.Event) calendar.Event {
	out := calendar.Event{
		ID:          ev.Id,
		Status:      ev.Status,
		HTMLLink:    ev.HtmlLink,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.Start != nil {
		out.Start = calendar.Boundary{Date: ev.Start.Date, DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone}
	}
	if ev.End != nil {
		out.End = calendar.Boundary{Date: ev.End.Date, DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone}
	}
	for _, a := range ev.Attendees {
		out.Attendees = append(out.Attendees, a.Email)
	}
	return out
}

func fromAPIList(items []*gcal.Event) []calendar.Event {
	events := make([]calendar.Event, 0, len(items))
	for _, item := range items {
		events = append(events, fromAPI(item))
	}
	return events
}
