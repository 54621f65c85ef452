package core

import (
	"time"

	"github.com/google/uuid"
)

// Role categorizes who authored a message within a conversation.
type Role string

const (
	// RoleUser marks a message authored by the human.
	RoleUser Role = "user"
	// RoleAssistant marks a message authored by a model-backed agent.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool execution result.
	RoleTool Role = "tool"
	// RoleSystem marks a synthetic notice injected by the scheduler
	// (failure narration, status messages).
	RoleSystem Role = "system"
)

// HumanSpeaker is the reserved speaker name for the end user.
const HumanSpeaker = "human"

// ToolCall is a request, authored by an agent, to execute a named tool.
// Arguments carries the serialized (JSON) argument payload.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult records the outcome of a previously requested ToolCall.
// Exactly one of Value or Error is meaningful; Error is non-empty on failure.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Message is the unit of conversation. After being appended to a transcript
// it must be treated as immutable. A message carries free text, tool call
// requests, or a tool result; assistant messages may combine text with calls.
type Message struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id,omitempty"`
	Speaker   string      `json:"speaker"`
	Role      Role        `json:"role"`
	Text      string      `json:"text,omitempty"`
	Calls     []ToolCall  `json:"calls,omitempty"`
	Result    *ToolResult `json:"result,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewID generates a unique identifier for messages, runs and sessions.
func NewID() string { return uuid.NewString() }

func newMessage(speaker string, role Role) Message {
	return Message{
		ID:        NewID(),
		Speaker:   speaker,
		Role:      role,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a human-authored text message bound to a run.
func NewUserMessage(runID, text string) Message {
	m := newMessage(HumanSpeaker, RoleUser)
	m.RunID = runID
	m.Text = text
	return m
}

// NewAgentMessage creates an assistant-authored message. It may carry text,
// tool call requests, or both.
func NewAgentMessage(speaker, text string, calls ...ToolCall) Message {
	m := newMessage(speaker, RoleAssistant)
	m.Text = text
	m.Calls = calls
	return m
}

// NewToolResultMessage records the completion (or failure) of a tool call.
func NewToolResultMessage(speaker string, callID, name string, value any, err error) Message {
	m := newMessage(speaker, RoleTool)
	res := &ToolResult{CallID: callID, Name: name, Value: value}
	if err != nil {
		res.Error = err.Error()
	}
	m.Result = res
	return m
}

// NewSystemNotice creates a scheduler-authored notice, used to narrate
// failures back into the conversation instead of crashing the session.
func NewSystemNotice(text string) Message {
	m := newMessage("scheduler", RoleSystem)
	m.Text = text
	return m
}

// HasCalls reports whether the message requests any tool executions.
func (m Message) HasCalls() bool { return len(m.Calls) > 0 }

// IsResult reports whether the message carries a tool execution result.
func (m Message) IsResult() bool { return m.Result != nil }
