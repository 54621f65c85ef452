package agent

import (
	"context"
	"strings"

	"github.com/calassist/calassist/core"
)

// Turn carries everything an agent may consult when producing its message.
// The scheduler assembles one Turn per speaking step.
type Turn struct {
	// History is the transcript so far, oldest first.
	History []core.Message

	// MemoryContext holds recalled long-term memory lines, already formatted
	// for prompt injection. Empty when recall produced nothing or failed.
	MemoryContext string

	// PendingCalls are tool calls without a matching result, oldest first.
	PendingCalls []core.ToolCall

	// HumanInput delivers bridge-supplied text to the human proxy. Nil for
	// every other agent.
	HumanInput <-chan string

	// OnPartial, when non-nil, receives streamed text fragments as a
	// model-backed agent produces them.
	OnPartial func(text string)
}

// Agent is a conversation participant. Produce returns exactly one message;
// blocking operations (model completions, tool backends, human input) must
// honor ctx cancellation.
type Agent interface {
	// Name returns the roster name used for speaker attribution and routing.
	Name() string

	// Produce generates this agent's next message for the given turn.
	Produce(ctx context.Context, turn Turn) (core.Message, error)

	// AcceptsHumanInput reports whether this agent suspends for bridge input.
	// True only for the designated human proxy.
	AcceptsHumanInput() bool

	// Handoffs returns the agent's ordered handoff rules. After this agent
	// speaks, the first matching rule names the next speaker.
	Handoffs() []HandoffRule
}

// Condition decides whether a handoff rule applies, given the message the
// agent just emitted.
type Condition func(last core.Message) bool

// HandoffRule routes the conversation to a named agent when its condition
// matches. Rules are evaluated in declaration order, first match wins.
type HandoffRule struct {
	When Condition
	To   string
}

// Always matches unconditionally. Useful as a final fallback rule.
func Always() Condition {
	return func(core.Message) bool { return true }
}

// WhenContains matches when the emitted text contains substr (case-insensitive).
func WhenContains(substr string) Condition {
	lower := strings.ToLower(substr)
	return func(msg core.Message) bool {
		return strings.Contains(strings.ToLower(msg.Text), lower)
	}
}

// WhenCallsTool matches when the emitted message requests any tool call.
func WhenCallsTool() Condition {
	return func(msg core.Message) bool { return msg.HasCalls() }
}

// WhenPlainText matches when the emitted message is free text without tool calls.
func WhenPlainText() Condition {
	return func(msg core.Message) bool { return !msg.HasCalls() && msg.Text != "" }
}

// base provides the name and handoff bookkeeping shared by all agent kinds.
type base struct {
	name     string
	handoffs []HandoffRule
}

func (b *base) Name() string            { return b.name }
func (b *base) Handoffs() []HandoffRule { return b.handoffs }
