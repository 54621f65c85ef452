// Package model defines the provider-neutral completion interface the chat
// scheduler drives, plus a scripted mock for tests. Concrete adapters live in
// the openai and anthropic sub-packages.
package model

import (
	"context"
	"fmt"

	"github.com/calassist/calassist/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by an agent turn.
// History carries the conversational transcript; Instructions becomes the
// system prompt.
type Request struct {
	Instructions string           `json:"instructions"`
	History      []core.Message   `json:"history"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model. A final
// response carries the full text and any tool call requests.
type Response struct {
	Partial      bool            `json:"partial"`
	Text         string          `json:"text,omitempty"`
	Calls        []core.ToolCall `json:"calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Generate
// returns an ordered stream of responses (closed on completion) and a
// terminal error channel (size 1, closed after at most one send).
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests. Responses are
// consumed in FIFO order, one per Generate call; an exhausted script yields
// an echo of the last user message.
type MockModel struct {
	info   Info
	script []Response
	errs   []error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// Queue appends a scripted response returned by a future Generate call.
func (m *MockModel) Queue(resp Response) *MockModel {
	m.script = append(m.script, resp)
	m.errs = append(m.errs, nil)
	return m
}

// QueueText is shorthand for queuing a plain final text response.
func (m *MockModel) QueueText(text string) *MockModel {
	return m.Queue(Response{Text: text, FinishReason: "stop"})
}

// QueueCall queues a final response requesting a single tool call.
func (m *MockModel) QueueCall(call core.ToolCall) *MockModel {
	return m.Queue(Response{Calls: []core.ToolCall{call}, FinishReason: "tool_calls"})
}

// QueueError queues a Generate call that fails with err.
func (m *MockModel) QueueError(err error) *MockModel {
	m.script = append(m.script, Response{})
	m.errs = append(m.errs, err)
	return m
}

// Generate implements Model by replaying the scripted responses. Consecutive
// partial entries are streamed within a single call, up to and including the
// next final entry.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(m.script) == 0 {
			respCh <- Response{Text: echo(req), FinishReason: "stop"}
			return
		}
		for len(m.script) > 0 {
			next, err := m.script[0], m.errs[0]
			m.script, m.errs = m.script[1:], m.errs[1:]
			if err != nil {
				errCh <- err
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- next:
			}
			if !next.Partial {
				return
			}
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func echo(req Request) string {
	for i := len(req.History) - 1; i >= 0; i-- {
		if req.History[i].Role == core.RoleUser {
			return fmt.Sprintf("Mock response to: %s", req.History[i].Text)
		}
	}
	return "Mock response"
}
