package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/tool"
)

// ExecutorAgentOptions configures an ExecutorAgent.
type ExecutorAgentOptions struct {
	Handoffs []HandoffRule
	Logger   logging.Logger
}

// ExecutorAgent is the non-model participant that performs tool calls. When
// selected it deterministically executes the most recent pending call found
// in the transcript and reports the outcome as a tool-role message.
//
// Backend, validation and unknown-tool failures are narrated into the result
// so the requesting agent can react on its next turn. Authorization failures
// are returned as errors; they indicate a wiring mistake and abort the turn.
type ExecutorAgent struct {
	base
	registry *tool.Registry
	opts     ExecutorAgentOptions
}

// NewExecutorAgent creates an executor bound to the given registry.
func NewExecutorAgent(name string, registry *tool.Registry, optFns ...func(o *ExecutorAgentOptions)) *ExecutorAgent {
	opts := ExecutorAgentOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ExecutorAgent{
		base:     base{name: name, handoffs: opts.Handoffs},
		registry: registry,
		opts:     opts,
	}
}

// AcceptsHumanInput always returns false for the executor.
func (a *ExecutorAgent) AcceptsHumanInput() bool { return false }

// Produce executes the most recent pending tool call.
func (a *ExecutorAgent) Produce(ctx context.Context, turn Turn) (core.Message, error) {
	if len(turn.PendingCalls) == 0 {
		return core.Message{}, fmt.Errorf("executor %s selected with no pending tool call", a.name)
	}
	call := turn.PendingCalls[len(turn.PendingCalls)-1]

	caller := callerOf(turn.History, call.ID)

	result, err := a.registry.Invoke(ctx, call, caller, a.name)
	if err != nil {
		var authErr *tool.AuthorizationError
		if errors.As(err, &authErr) {
			return core.Message{}, authErr
		}
		if ctx.Err() != nil {
			return core.Message{}, ctx.Err()
		}
		// Recoverable failure: record it as the call's result.
		a.opts.Logger.Warn("executor.call.failed", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return core.NewToolResultMessage(a.name, call.ID, call.Name, nil, err), nil
	}
	return core.NewToolResultMessage(a.name, call.ID, call.Name, result, nil), nil
}

// callerOf finds the speaker that requested the given call id.
func callerOf(history []core.Message, callID string) string {
	for i := len(history) - 1; i >= 0; i-- {
		for _, c := range history[i].Calls {
			if c.ID == callID {
				return history[i].Speaker
			}
		}
	}
	return ""
}
