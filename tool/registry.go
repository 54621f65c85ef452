package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/model"
)

// registration binds a tool to the agents permitted to use it.
type registration struct {
	tool Tool
	// Agent permitted to request the call. Empty means any agent.
	caller string
	// Agent permitted to actually perform the call.
	executor string
}

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry maps tool names to callable operations together with the
// caller/executor capability declarations the scheduler enforces. It is
// stateless with respect to sessions and safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	opts    RegistryOptions
}

// NewRegistry creates an empty tool registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		entries: make(map[string]registration),
		opts:    opts,
	}
}

// Register adds a tool under its name, declaring which agent may request it
// (caller, empty for any) and which agent performs it (executor). A name
// collision returns *DuplicateToolError.
func (r *Registry) Register(t Tool, caller, executor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t.Name()]; exists {
		return &DuplicateToolError{Name: t.Name()}
	}
	r.entries[t.Name()] = registration{tool: t, caller: caller, executor: executor}
	return nil
}

// MustRegister is Register for static wiring at startup, panicking on collision.
func (r *Registry) MustRegister(t Tool, caller, executor string) {
	if err := r.Register(t, caller, executor); err != nil {
		panic(err)
	}
}

// Resolve returns the tool registered under name, or *UnknownToolError.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return reg.tool, nil
}

// ExecutorFor returns the agent declared as executor of the named tool. The
// scheduler uses this for deterministic speaker selection when a tool call
// is pending.
func (r *Registry) ExecutorFor(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	return reg.executor, nil
}

// Definitions returns model-facing definitions for every tool the given agent
// is permitted to call, sorted by name for stable prompts.
func (r *Registry) Definitions(caller string) []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []model.ToolDefinition
	for _, reg := range r.entries {
		if reg.caller != "" && reg.caller != caller {
			continue
		}
		defs = append(defs, model.ToolDefinition{
			Name:        reg.tool.Name(),
			Description: reg.tool.Description(),
			Parameters:  reg.tool.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke resolves and executes a requested tool call on behalf of caller,
// performed by executor.
//
// Failure modes:
//
//	*UnknownToolError    - no tool registered under the requested name
//	*AuthorizationError  - caller or executor lacks the declared capability
//	*Error (VALIDATION_ERROR) - arguments are not valid JSON or fail the schema
//	*BackendError / *Error    - the tool itself failed
//
// Panics inside tool execution are recovered and reported as execution errors
// so a misbehaving tool cannot take the dispatch loop down.
func (r *Registry) Invoke(ctx context.Context, call core.ToolCall, caller, executor string) (result any, err error) {
	r.mu.RLock()
	reg, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownToolError{Name: call.Name}
	}
	if reg.caller != "" && reg.caller != caller {
		return nil, &AuthorizationError{Tool: call.Name, Agent: caller, Capability: "caller"}
	}
	if reg.executor != "" && reg.executor != executor {
		return nil, &AuthorizationError{Tool: call.Name, Agent: executor, Capability: "executor"}
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if uerr := json.Unmarshal([]byte(call.Arguments), &args); uerr != nil {
			return nil, &Error{
				Tool:    call.Name,
				Message: fmt.Sprintf("arguments are not valid JSON: %v", uerr),
				Code:    CodeValidation,
			}
		}
	}

	logger := r.opts.Logger
	start := time.Now()
	logger.Debug("tool.invoke.start", "tool", call.Name, "call_id", call.ID, "executor", executor)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("tool.invoke.panic", "tool", call.Name, "panic", fmt.Sprintf("%v", rec))
			result = nil
			err = &Error{
				Tool:    call.Name,
				Message: fmt.Sprintf("tool panicked: %v", rec),
				Code:    CodeExecution,
			}
		}
	}()

	result, err = reg.tool.Call(ctx, args)
	if err != nil {
		logger.Warn("tool.invoke.error", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return nil, err
	}
	logger.Info("tool.invoke.success", "tool", call.Name, "call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
