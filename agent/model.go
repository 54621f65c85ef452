package agent

import (
	"context"
	"fmt"

	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/model"
	"github.com/calassist/calassist/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction     Instruction
	Handoffs        []HandoffRule
	EnableStreaming bool
	// Registry supplies tool definitions for the tools this agent may call.
	// Nil disables function calling.
	Registry *tool.Registry
	Logger   logging.Logger
}

// ModelAgent is a conversation participant backed by a completion model.
//
// Each turn it resolves its role instruction (re-applying the {context}
// memory placeholder), offers the model the tools it is authorized to call,
// and emits either free text or a structured tool call request. It never
// executes tools itself; execution belongs to the executor agent.
type ModelAgent struct {
	base
	llm  model.Model
	opts ModelAgentOptions
}

// NewModelAgent creates a model-backed agent.
//
// Defaults: a generic assistant instruction derived from the name, streaming
// enabled, no tools, no handoff rules.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:     NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		EnableStreaming: true,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelAgent{
		base: base{name: name, handoffs: opts.Handoffs},
		llm:  llm,
		opts: opts,
	}
}

// AcceptsHumanInput always returns false for model-backed agents.
func (a *ModelAgent) AcceptsHumanInput() bool { return false }

// Produce runs one completion call and converts the final response into a
// transcript message. Streaming text fragments are forwarded to
// turn.OnPartial as they arrive.
func (a *ModelAgent) Produce(ctx context.Context, turn Turn) (core.Message, error) {
	instructions, err := a.opts.Instruction.Resolve(turn)
	if err != nil {
		return core.Message{}, fmt.Errorf("resolve instruction for %s: %w", a.name, err)
	}

	req := model.Request{
		Instructions: instructions,
		History:      turn.History,
		Stream:       a.opts.EnableStreaming,
	}
	if a.opts.Registry != nil {
		req.Tools = a.opts.Registry.Definitions(a.name)
	}

	a.opts.Logger.Debug("agent.produce.start",
		"agent", a.name, "provider", a.llm.Info().Provider, "tools", len(req.Tools))

	out, errCh := a.llm.Generate(ctx, req)

	var final model.Response
	var sawFinal bool
	for {
		select {
		case resp, ok := <-out:
			if !ok {
				out = nil
			} else if resp.Partial {
				if turn.OnPartial != nil && resp.Text != "" {
					turn.OnPartial(resp.Text)
				}
			} else {
				final = resp
				sawFinal = true
			}
		case genErr, ok := <-errCh:
			if ok && genErr != nil {
				a.opts.Logger.Error("agent.produce.error", "agent", a.name, "error", genErr.Error())
				return core.Message{}, fmt.Errorf("model generation for %s: %w", a.name, genErr)
			}
			errCh = nil
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		}
		if out == nil && errCh == nil {
			break
		}
	}
	if !sawFinal {
		return core.Message{}, fmt.Errorf("model for %s produced no final response", a.name)
	}

	a.opts.Logger.Debug("agent.produce.done",
		"agent", a.name, "calls", len(final.Calls), "finish_reason", final.FinishReason)

	return core.NewAgentMessage(a.name, final.Text, final.Calls...), nil
}
