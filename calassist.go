// Package calassist provides a high-level façade over the scheduler, runner
// and tool registry, enabling quick construction of the conversational
// calendar assistant. Most applications interact with this package by:
//  1. Creating an Assistant via New() with a completion model and a calendar
//     client (optionally overriding the in-memory memory store and logger)
//  2. Opening sessions (one per conversation or connection)
//  3. Sending user text asynchronously (Send) or synchronously (SendSync)
//
// The façade delegates dispatch to chat.Scheduler and runner.Runner while
// keeping setup concise. All defaults are safe for local development; the
// production server in cmd/calassist wires the same pieces explicitly.
package calassist

import (
	"context"

	"github.com/calassist/calassist/agent"
	"github.com/calassist/calassist/calendar"
	"github.com/calassist/calassist/chat"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/memory"
	"github.com/calassist/calassist/model"
	"github.com/calassist/calassist/runner"
	"github.com/calassist/calassist/tool"
)

// Default roster names used by the façade.
const (
	AssistantName = "assistant"
	ExecutorName  = "executor"
)

// DefaultInstruction is the assistant role prompt the façade installs when
// none is supplied. {context} is replaced with recalled memories each turn.
const DefaultInstruction = `You are a helpful calendar assistant. Use the
calendar tools to answer questions and make changes; a dedicated executor
runs each tool and reports the result back to you. Call get_current_datetime
before interpreting relative dates like "tomorrow".

Things remembered about this user:
{context}

When the request is fully handled, summarize the outcome and end your
message with TERMINATE.`

// Options configures the Assistant façade.
type Options struct {
	// Instruction overrides the assistant role prompt.
	Instruction string
	// MaxRounds caps the dispatch loop per run.
	MaxRounds int
	// EnableStreaming forwards partial model output as events.
	EnableStreaming bool
	// Mode and Supersede seed sessions opened through the façade.
	Mode      core.Mode
	Supersede core.SupersedePolicy
	// MemoryStore defaults to an in-memory store.
	MemoryStore memory.Store
	Logger      logging.Logger
}

// Assistant aggregates the registry, roster, scheduler and runner.
type Assistant struct {
	runner *runner.Runner
	opts   Options
}

// New wires the default assistant / executor / human roster over the given
// model and calendar client.
func New(llm model.Model, cal calendar.Client, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{
		Instruction:     DefaultInstruction,
		MaxRounds:       chat.DefaultMaxRounds,
		EnableStreaming: true,
		Mode:            core.ModeMultiTurn,
		Supersede:       core.SupersedeKeep,
		MemoryStore:     memory.NewInMemory(),
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = opts.Logger
	})
	if err := calendar.Register(registry, cal, AssistantName, ExecutorName); err != nil {
		return nil, err
	}

	assistant := agent.NewModelAgent(AssistantName, llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(opts.Instruction)
		o.Registry = registry
		o.EnableStreaming = opts.EnableStreaming
		o.Logger = opts.Logger
	})
	executor := agent.NewExecutorAgent(ExecutorName, registry, func(o *agent.ExecutorAgentOptions) {
		o.Logger = opts.Logger
	})
	human := agent.NewHumanAgent(core.HumanSpeaker)

	scheduler, err := chat.NewScheduler(registry, []agent.Agent{assistant, executor, human},
		func(o *chat.Options) {
			o.MaxRounds = opts.MaxRounds
			o.Coordinator = AssistantName
			o.Logger = opts.Logger
		})
	if err != nil {
		return nil, err
	}

	r := runner.New(scheduler, func(o *runner.Options) {
		o.Memory = memory.NewAdapter(opts.MemoryStore, func(ao *memory.AdapterOptions) {
			ao.Logger = opts.Logger
		})
		o.Logger = opts.Logger
	})

	return &Assistant{runner: r, opts: opts}, nil
}

// OpenSession creates a session keyed to the given memory user identity.
func (a *Assistant) OpenSession(user string) *core.Session {
	return core.NewSession(user, a.opts.Mode, a.opts.Supersede)
}

// Send starts an asynchronous run, returning the run id plus event and
// error channels. Any in-flight run on the session is superseded first.
func (a *Assistant) Send(
	ctx context.Context,
	sess *core.Session,
	text string,
) (string, <-chan runner.Event, <-chan error, error) {
	return a.runner.Run(ctx, sess, text)
}

// SendSync drains the async channels, accumulates events and returns them
// with the run id.
func (a *Assistant) SendSync(
	ctx context.Context,
	sess *core.Session,
	text string,
) (string, []runner.Event, error) {
	runID, eventsCh, errorsCh, err := a.runner.Run(ctx, sess, text)
	if err != nil {
		return "", nil, err
	}

	var events []runner.Event
	for {
		select {
		case <-ctx.Done():
			return runID, events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil
				}
			}
			events = append(events, ev)

		case err := <-errorsCh:
			if err != nil {
				return runID, events, err
			}
		}
	}
}
