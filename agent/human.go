package agent

import (
	"context"
	"fmt"

	"github.com/calassist/calassist/core"
)

// HumanAgentOptions configures a HumanAgent.
type HumanAgentOptions struct {
	Handoffs []HandoffRule
}

// HumanAgent is the proxy standing in for the end user. It never calls a
// model; when selected it suspends until the transport bridge supplies text
// on the turn's HumanInput channel, then emits that text as a user message.
type HumanAgent struct {
	base
}

// NewHumanAgent creates a human proxy with the given roster name.
func NewHumanAgent(name string, optFns ...func(o *HumanAgentOptions)) *HumanAgent {
	opts := HumanAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &HumanAgent{base: base{name: name, handoffs: opts.Handoffs}}
}

// AcceptsHumanInput always returns true for the human proxy.
func (a *HumanAgent) AcceptsHumanInput() bool { return true }

// Produce blocks until bridge input arrives or the context is cancelled.
func (a *HumanAgent) Produce(ctx context.Context, turn Turn) (core.Message, error) {
	if turn.HumanInput == nil {
		return core.Message{}, fmt.Errorf("human proxy %s selected without an input channel", a.name)
	}
	select {
	case text, ok := <-turn.HumanInput:
		if !ok {
			return core.Message{}, fmt.Errorf("human input channel closed")
		}
		m := core.NewUserMessage("", text)
		m.Speaker = a.name
		return m, nil
	case <-ctx.Done():
		return core.Message{}, ctx.Err()
	}
}
