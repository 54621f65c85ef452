// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (calendar operations, clock lookups, any
// external side effect) with schema validated arguments, capability
// enforcement and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/calassist/calassist/internal/schema"
)

// Tool defines a named, schema typed operation an agent may request and an
// executor agent performs.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case recommended)
//   - Define proper JSON schema for parameters
//   - Be thread-safe; a registry shares one instance across sessions
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the model to help it decide when and how
	// to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]interface{}

	// Call executes the tool with already validated arguments.
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = schema.ValidationError

// Error represents errors that occur during tool execution.
type Error struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

// Error codes attached to *Error.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new Error with the specified details.
func NewError(tool, message, code string) *Error {
	return &Error{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// DuplicateToolError reports a Register call whose tool name collides with an
// already registered tool.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError reports a lookup for a name no tool was registered under.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// AuthorizationError reports a capability violation: an agent requested or
// executed a tool it was not declared for. This indicates a wiring mistake
// rather than a runtime condition, so the scheduler aborts the turn instead
// of narrating it back to the model.
type AuthorizationError struct {
	Tool       string
	Agent      string
	Capability string // "caller" or "executor"
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("agent %q is not an authorized %s of tool %q", e.Agent, e.Capability, e.Tool)
}

// BackendError wraps a failure raised by the external collaborator behind a
// tool (calendar API, HTTP service). It is recoverable: the scheduler reports
// it into the transcript as a tool result so the next agent turn can retry,
// apologize, or ask the human.
type BackendError struct {
	Tool string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error in tool %q: %v", e.Tool, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
