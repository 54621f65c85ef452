package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calassist/calassist/agent"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/tool"
)

// ErrorMarker prefixes every failure narrated into the transcript so the end
// user can tell assistant content from system-reported problems.
const ErrorMarker = "[ERROR]"

// DefaultMaxRounds caps the dispatch loop when no explicit limit is set.
const DefaultMaxRounds = 20

// Policy selects the fallback speaker-selection strategy used when neither
// a pending tool call nor a handoff rule decides the next speaker.
type Policy string

const (
	// PolicyAuto picks heuristically: after the human or a tool result the
	// coordinator speaks; after a plain coordinator answer the human proxy
	// gets the floor.
	PolicyAuto Policy = "auto"
	// PolicyRoundRobin cycles through the roster in declaration order.
	PolicyRoundRobin Policy = "round_robin"
)

// StarvationError reports a speaker that failed twice in a row with the
// identical error. The run is aborted to avoid an infinite failure loop.
type StarvationError struct {
	Speaker string
	Reason  string
}

func (e *StarvationError) Error() string {
	return fmt.Sprintf("speaker %q starved the session: %s", e.Speaker, e.Reason)
}

// Hooks are the fixed extension points of the dispatch loop.
type Hooks struct {
	// BeforeSystemPrompt runs after a speaker is selected and may mutate the
	// turn before the agent produces (inject memory, rewrite history).
	BeforeSystemPrompt func(speaker string, turn *agent.Turn)
	// AfterMessageAppended runs after each message lands in the transcript.
	AfterMessageAppended func(msg core.Message)
}

// Options configure a Scheduler.
type Options struct {
	MaxRounds          int
	Policy             Policy
	AllowRepeatSpeaker bool
	// Coordinator names the model-backed agent the auto policy prefers.
	// Defaults to the first non-executor, non-human agent in the roster.
	Coordinator string
	// Terminal decides whether an assistant message ends the conversation.
	// The default matches a trailing TERMINATE marker.
	Terminal func(msg core.Message) bool
	// WaitForHuman controls what selecting the human proxy means mid-run.
	// False (the default) completes the run and returns the floor to the
	// transport; true suspends until the bridge supplies input.
	WaitForHuman bool
	Hooks        Hooks
	Logger       logging.Logger
}

// RunInput carries the per-run collaborators the scheduler cannot know at
// construction time.
type RunInput struct {
	Session *core.Session
	RunID   string
	// MemoryContext seeds each turn's memory context. A BeforeSystemPrompt
	// hook may replace it with fresher recall before the speaker produces.
	MemoryContext string
	// Hooks are per-run extension points, invoked after the scheduler-wide
	// ones configured in Options.
	Hooks Hooks
	// HumanInput feeds the human proxy when WaitForHuman is enabled.
	HumanInput <-chan string
	// Emit observes every appended message, in transcript order.
	Emit func(msg core.Message)
	// OnPartial observes streamed fragments from model-backed speakers.
	OnPartial func(speaker, text string)
}

// Result summarizes a finished run.
type Result struct {
	Status core.RunStatus
	Rounds int
}

// Scheduler owns the roster and drives the dispatch loop for one session at
// a time. It holds no per-run state and may be shared across sessions.
type Scheduler struct {
	roster   []agent.Agent
	byName   map[string]agent.Agent
	registry *tool.Registry
	opts     Options
}

// NewScheduler builds a scheduler over the given roster. Roster names must
// be unique and at least one agent is required.
func NewScheduler(registry *tool.Registry, roster []agent.Agent, optFns ...func(o *Options)) (*Scheduler, error) {
	opts := Options{
		MaxRounds: DefaultMaxRounds,
		Policy:    PolicyAuto,
		Terminal:  TerminateSuffix("TERMINATE"),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(roster) == 0 {
		return nil, errors.New("scheduler requires at least one agent")
	}
	byName := make(map[string]agent.Agent, len(roster))
	for _, a := range roster {
		if _, exists := byName[a.Name()]; exists {
			return nil, fmt.Errorf("duplicate agent name %q in roster", a.Name())
		}
		byName[a.Name()] = a
	}
	if opts.Coordinator == "" {
		for _, a := range roster {
			if !a.AcceptsHumanInput() {
				if _, isExec := a.(*agent.ExecutorAgent); !isExec {
					opts.Coordinator = a.Name()
					break
				}
			}
		}
	}
	if _, ok := byName[opts.Coordinator]; !ok {
		return nil, fmt.Errorf("coordinator %q is not in the roster", opts.Coordinator)
	}

	return &Scheduler{roster: roster, byName: byName, registry: registry, opts: opts}, nil
}

// TerminateSuffix builds a terminal condition matching marker at the end of
// a plain-text message, ignoring trailing whitespace and punctuation.
func TerminateSuffix(marker string) func(core.Message) bool {
	return func(msg core.Message) bool {
		if msg.Role != core.RoleAssistant || msg.HasCalls() {
			return false
		}
		text := strings.TrimRight(strings.TrimSpace(msg.Text), ".!\n ")
		return strings.HasSuffix(text, marker)
	}
}

// Run executes the dispatch loop until termination, the round cap, or
// cancellation. Within one session messages are totally ordered by emission
// time; the transcript is never reordered or rewritten.
//
// Cancellation keeps tool effects visible: if a tool call fired and its
// result came back, the result is appended before Run returns, even when the
// context is already cancelled.
func (s *Scheduler) Run(ctx context.Context, in RunInput) (Result, error) {
	logger := s.opts.Logger
	transcript := in.Session.Transcript

	var lastFailure struct {
		speaker string
		reason  string
		count   int
	}

	for round := 1; ; round++ {
		if round > s.opts.MaxRounds {
			s.append(in, core.NewSystemNotice(fmt.Sprintf(
				"%s conversation reached the round limit (%d) before completing", ErrorMarker, s.opts.MaxRounds)))
			logger.Warn("chat.run.round_limit", "run", in.RunID, "max_rounds", s.opts.MaxRounds)
			return Result{Status: core.StatusRoundLimit, Rounds: round - 1}, nil
		}
		if err := ctx.Err(); err != nil {
			logger.Info("chat.run.cancelled", "run", in.RunID, "round", round)
			return Result{Status: core.StatusAborted, Rounds: round - 1}, err
		}

		speaker, err := s.selectSpeaker(transcript)
		if err != nil {
			s.append(in, core.NewSystemNotice(fmt.Sprintf("%s speaker selection failed: %v", ErrorMarker, err)))
			return Result{Status: core.StatusAborted, Rounds: round}, err
		}
		logger.Debug("chat.step.speaker_selected", "run", in.RunID, "round", round, "speaker", speaker.Name())

		if speaker.AcceptsHumanInput() && !s.opts.WaitForHuman {
			// The floor returns to the transport; a fresh run resumes the
			// conversation when the next frame arrives.
			logger.Debug("chat.run.floor_to_human", "run", in.RunID, "round", round)
			return Result{Status: core.StatusCompleted, Rounds: round - 1}, nil
		}

		turn := agent.Turn{
			History:       transcript.History(),
			MemoryContext: in.MemoryContext,
			PendingCalls:  transcript.PendingCalls(),
			HumanInput:    in.HumanInput,
		}
		if in.OnPartial != nil {
			name := speaker.Name()
			turn.OnPartial = func(text string) { in.OnPartial(name, text) }
		}
		if s.opts.Hooks.BeforeSystemPrompt != nil {
			s.opts.Hooks.BeforeSystemPrompt(speaker.Name(), &turn)
		}
		if in.Hooks.BeforeSystemPrompt != nil {
			in.Hooks.BeforeSystemPrompt(speaker.Name(), &turn)
		}

		msg, err := speaker.Produce(ctx, turn)
		if err != nil {
			var authErr *tool.AuthorizationError
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				logger.Info("chat.run.cancelled", "run", in.RunID, "round", round, "speaker", speaker.Name())
				return Result{Status: core.StatusAborted, Rounds: round - 1}, err
			case errors.As(err, &authErr):
				s.append(in, core.NewSystemNotice(fmt.Sprintf("%s %v", ErrorMarker, authErr)))
				logger.Error("chat.run.authorization", "run", in.RunID, "error", authErr.Error())
				return Result{Status: core.StatusAborted, Rounds: round}, authErr
			}

			// Recoverable failure: narrate it and keep going, unless this
			// speaker just failed the same way.
			reason := err.Error()
			if lastFailure.speaker == speaker.Name() && lastFailure.reason == reason {
				lastFailure.count++
			} else {
				lastFailure.speaker, lastFailure.reason, lastFailure.count = speaker.Name(), reason, 1
			}
			s.append(in, core.NewSystemNotice(fmt.Sprintf(
				"%s %s failed to respond: %s", ErrorMarker, speaker.Name(), reason)))
			if lastFailure.count >= 2 {
				starve := &StarvationError{Speaker: speaker.Name(), Reason: reason}
				s.append(in, core.NewSystemNotice(fmt.Sprintf(
					"%s ending the conversation: %s keeps failing the same way", ErrorMarker, speaker.Name())))
				logger.Error("chat.run.starved", "run", in.RunID, "speaker", speaker.Name(), "reason", reason)
				return Result{Status: core.StatusAborted, Rounds: round}, starve
			}
			continue
		}

		msg.RunID = in.RunID
		s.append(in, msg)

		// Backend failures come back as narrated tool results, not Produce
		// errors, so they feed the same consecutive-failure accounting.
		if msg.IsResult() && msg.Result.Error != "" {
			reason := msg.Result.Name + ": " + msg.Result.Error
			if lastFailure.speaker == msg.Speaker && lastFailure.reason == reason {
				lastFailure.count++
			} else {
				lastFailure.speaker, lastFailure.reason, lastFailure.count = msg.Speaker, reason, 1
			}
			if lastFailure.count >= 2 {
				starve := &StarvationError{Speaker: msg.Speaker, Reason: reason}
				s.append(in, core.NewSystemNotice(fmt.Sprintf(
					"%s ending the conversation: %s keeps failing the same way", ErrorMarker, msg.Speaker)))
				logger.Error("chat.run.starved", "run", in.RunID, "speaker", msg.Speaker, "reason", reason)
				return Result{Status: core.StatusAborted, Rounds: round}, starve
			}
		} else if msg.Speaker == lastFailure.speaker {
			// Only a success from the failing speaker clears the streak; an
			// interleaved turn from someone else must not mask it.
			lastFailure.speaker, lastFailure.reason, lastFailure.count = "", "", 0
		}

		// A produced message is appended even under a cancelled context, so
		// a fired tool call never ends up executed but unrecorded.
		if err := ctx.Err(); err != nil {
			logger.Info("chat.run.cancelled", "run", in.RunID, "round", round)
			return Result{Status: core.StatusAborted, Rounds: round}, err
		}

		if s.opts.Terminal != nil && s.opts.Terminal(msg) {
			logger.Info("chat.run.completed", "run", in.RunID, "rounds", round)
			return Result{Status: core.StatusCompleted, Rounds: round}, nil
		}
	}
}

func (s *Scheduler) append(in RunInput, msg core.Message) {
	in.Session.Transcript.Append(msg)
	if in.Emit != nil {
		in.Emit(msg)
	}
	if s.opts.Hooks.AfterMessageAppended != nil {
		s.opts.Hooks.AfterMessageAppended(msg)
	}
	if in.Hooks.AfterMessageAppended != nil {
		in.Hooks.AfterMessageAppended(msg)
	}
}
