package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mode controls whether a session's transcript carries across inbound human
// messages on the same connection, or restarts on each one. Both behaviors
// exist in practice, so the choice is explicit rather than a hidden default.
type Mode string

const (
	// ModeMultiTurn continues the existing transcript on each inbound message.
	ModeMultiTurn Mode = "multi_turn"
	// ModeSingleShot starts a fresh transcript on each inbound message.
	ModeSingleShot Mode = "single_shot"
)

// SupersedePolicy decides what happens to a run's partial output when a new
// inbound message cancels it.
type SupersedePolicy string

const (
	// SupersedeKeep retains messages the cancelled run already emitted.
	SupersedeKeep SupersedePolicy = "keep"
	// SupersedeDiscard rewinds the transcript to its pre-run state.
	SupersedeDiscard SupersedePolicy = "discard"
)

// ErrRunActive is returned when a second dispatch run is started on a session
// that already has one in flight.
var ErrRunActive = errors.New("session already has an active run")

// Session represents one live transport connection: its transcript, the
// memory user-identity key, and the currently running dispatch task (if any).
// At most one dispatch run may be active per session; a new inbound message
// must cancel the in-flight run before starting a new one.
type Session struct {
	ID         string
	User       string
	Mode       Mode
	Supersede  SupersedePolicy
	Transcript *Transcript
	Created    time.Time

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates a session for a fresh connection.
func NewSession(user string, mode Mode, policy SupersedePolicy) *Session {
	return &Session{
		ID:         NewID(),
		User:       user,
		Mode:       mode,
		Supersede:  policy,
		Transcript: NewTranscript(),
		Created:    time.Now().UTC(),
	}
}

// BeginRun registers a dispatch run as the session's single active task.
// It fails with ErrRunActive if another run has not finished yet; callers
// are expected to CancelActive (and wait) first.
func (s *Session) BeginRun(runID string, cancel context.CancelFunc) (done chan struct{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrRunActive
	}
	done = make(chan struct{})
	s.active = &activeRun{id: runID, cancel: cancel, done: done}
	return done, nil
}

// EndRun clears the active run slot and signals completion. A mismatched
// runID is ignored so a late EndRun from a superseded run cannot clobber
// its successor.
func (s *Session) EndRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.id != runID {
		return
	}
	close(s.active.done)
	s.active = nil
}

// CancelActive cancels the in-flight run, if any, and returns a channel that
// closes once the run has fully wound down. Returns nil when idle.
func (s *Session) CancelActive() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	s.active.cancel()
	return s.active.done
}

// ActiveRunID returns the id of the in-flight run, or "" when idle.
func (s *Session) ActiveRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.id
}
