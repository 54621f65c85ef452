package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calassist/calassist/agent"
	"github.com/calassist/calassist/chat"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/memory"
)

// EventType discriminates the frames a run streams out.
type EventType string

const (
	// EventMessage carries one appended transcript message.
	EventMessage EventType = "message"
	// EventPartial carries a streamed text fragment from a model-backed speaker.
	EventPartial EventType = "partial"
	// EventStatus closes a run with its terminal status.
	EventStatus EventType = "status"
)

// Event is one frame streamed to the transport while a run executes.
type Event struct {
	Type    EventType      `json:"type"`
	RunID   string         `json:"run_id"`
	Message *core.Message  `json:"message,omitempty"`
	Speaker string         `json:"speaker,omitempty"`
	Text    string         `json:"text,omitempty"`
	Status  core.RunStatus `json:"status,omitempty"`
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for streamed events.
	EventBufferSize int
	// MemoryTimeout bounds each async memory notification.
	MemoryTimeout time.Duration
	Memory        *memory.Adapter
	Logger        logging.Logger
}

// Runner coordinates run execution: applies the session mode and supersede
// policy, starts the dispatch goroutine, streams events and notifies memory.
// Public methods are safe for concurrent use.
type Runner struct {
	scheduler *chat.Scheduler

	eventBufferSize int
	memoryTimeout   time.Duration
	memory          *memory.Adapter
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(scheduler *chat.Scheduler, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MemoryTimeout:   10 * time.Second,
		Memory:          memory.NewAdapter(nil),
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EventBufferSize < 1 {
		opts.EventBufferSize = 1
	}
	return &Runner{
		scheduler:       scheduler,
		eventBufferSize: opts.EventBufferSize,
		memoryTimeout:   opts.MemoryTimeout,
		memory:          opts.Memory,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Run starts a dispatch run for one inbound human message.
//
// An in-flight run on the same session is superseded first: it is cancelled,
// awaited, and under the "discard" policy its partial output is rewound, so
// the latest user intent always wins. In single-shot mode the transcript is
// reset before the new message is appended.
//
// Returned channels are closed when the run finishes; the events channel
// always ends with an EventStatus frame (unless the reader has gone away).
func (r *Runner) Run(ctx context.Context, sess *core.Session, userText string) (string, <-chan Event, <-chan error, error) {
	if superseded := sess.ActiveRunID(); superseded != "" {
		r.logger.Info("runner.supersede", "session", sess.ID, "superseded_run", superseded)
	}
	if done := sess.CancelActive(); done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return "", nil, nil, ctx.Err()
		}
	}

	if sess.Mode == core.ModeSingleShot {
		sess.Transcript.Reset()
	}

	runID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := sess.BeginRun(runID, cancel); err != nil {
		cancel()
		return "", nil, nil, fmt.Errorf("begin run: %w", err)
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	// Transcript length before this run's messages, for the discard policy.
	rewindTo := sess.Transcript.Len()

	// The user message is appended by the runner, not the scheduler, so it
	// bypasses the append hooks and is recorded here.
	userMsg := core.NewUserMessage(runID, userText)
	sess.Transcript.Append(userMsg)
	r.notifyMemory(userMsg, sess.User)

	eventsCh := make(chan Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	// Echo the accepted user turn so the transport can render it.
	eventsCh <- Event{Type: EventMessage, RunID: runID, Message: &userMsg, Speaker: userMsg.Speaker}

	emit := func(msg core.Message) {
		select {
		case eventsCh <- Event{Type: EventMessage, RunID: runID, Message: &msg, Speaker: msg.Speaker}:
		case <-runCtx.Done():
		}
	}
	onPartial := func(speaker, text string) {
		select {
		case eventsCh <- Event{Type: EventPartial, RunID: runID, Speaker: speaker, Text: text}:
		case <-runCtx.Done():
		}
	}

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			sess.EndRun(runID)
			close(eventsCh)
			close(errorsCh)
		}()

		r.logger.Info("runner.run.start", "session", sess.ID, "run", runID)

		result, err := r.scheduler.Run(runCtx, chat.RunInput{
			Session: sess,
			RunID:   runID,
			Hooks: chat.Hooks{
				// Recall runs once per selected speaker, before the turn is
				// finalized, so mid-run writes are visible to later turns.
				BeforeSystemPrompt: func(_ string, turn *agent.Turn) {
					recallCtx, done := context.WithTimeout(runCtx, r.memoryTimeout)
					defer done()
					turn.MemoryContext = r.memory.Recall(recallCtx, userText, sess.User)
				},
				AfterMessageAppended: func(msg core.Message) {
					r.notifyMemory(msg, sess.User)
				},
			},
			Emit:      emit,
			OnPartial: onPartial,
		})

		if err != nil && runCtx.Err() != nil && sess.Supersede == core.SupersedeDiscard {
			sess.Transcript.Rewind(rewindTo)
			r.logger.Info("runner.run.discarded", "session", sess.ID, "run", runID)
		}
		if err != nil && runCtx.Err() == nil {
			errorsCh <- err
		}

		// Best effort: the status frame is dropped if nobody is reading.
		select {
		case eventsCh <- Event{Type: EventStatus, RunID: runID, Status: result.Status}:
		default:
		}

		r.logger.Info("runner.run.done",
			"session", sess.ID, "run", runID, "status", string(result.Status), "rounds", result.Rounds)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()
	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

// notifyMemory records a message asynchronously; memory must never block or
// fail a run.
func (r *Runner) notifyMemory(msg core.Message, user string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.memoryTimeout)
		defer cancel()
		r.memory.Remember(ctx, msg, user)
	}()
}
