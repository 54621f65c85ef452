package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calassist/calassist/core"
)

func sumTool() *FuncTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	return NewFuncTool("calculate_sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

// -------------------- FuncTool Tests --------------------

func TestFuncTool_Success(t *testing.T) {
	result, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFuncTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0})
	assert.Error(t, err)
	toolErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFuncTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	failTool := NewFuncTool("fail", "Fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := failTool.Call(context.Background(), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
}

func TestFuncTool_BackendErrorForwarded(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	failTool := NewFuncTool("flaky", "Backend fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, &BackendError{Tool: "flaky", Err: errors.New("upstream down")}
	})
	_, err := failTool.Call(context.Background(), map[string]any{})
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "flaky", backendErr.Tool)
}

func TestFuncToolFromStruct_Schema(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Search text"`
		Limit *int   `json:"limit" description:"Optional cap"`
	}
	searchTool := NewFuncToolFromStruct("search", "Search things", args{}, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, nil
	})
	props, ok := searchTool.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
}

// -------------------- Registry Tests --------------------

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool(), "assistant", "executor"))

	err := reg.Register(sumTool(), "assistant", "executor")
	var dup *DuplicateToolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "calculate_sum", dup.Name)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("missing")
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}

func TestRegistry_ExecutorFor(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool(), "assistant", "executor"))

	executor, err := reg.ExecutorFor("calculate_sum")
	require.NoError(t, err)
	assert.Equal(t, "executor", executor)
}

func TestRegistry_Invoke(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool(), "assistant", "executor"))

	call := core.ToolCall{ID: "fc1", Name: "calculate_sum", Arguments: `{"a": 2, "b": 3}`}
	result, err := reg.Invoke(context.Background(), call, "assistant", "executor")
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestRegistry_InvokeAuthorization(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool(), "assistant", "executor"))

	call := core.ToolCall{ID: "fc1", Name: "calculate_sum", Arguments: `{"a": 2, "b": 3}`}

	_, err := reg.Invoke(context.Background(), call, "intruder", "executor")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "caller", authErr.Capability)

	_, err = reg.Invoke(context.Background(), call, "assistant", "intruder")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "executor", authErr.Capability)
}

func TestRegistry_InvokeMalformedJSON(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool(), "", "executor"))

	call := core.ToolCall{ID: "fc1", Name: "calculate_sum", Arguments: `{"a": `}
	_, err := reg.Invoke(context.Background(), call, "anyone", "executor")
	toolErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestRegistry_InvokeRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	panicTool := NewFuncTool("explode", "Panics", params, func(_ context.Context, _ map[string]any) (any, error) {
		panic("kaboom")
	})
	require.NoError(t, reg.Register(panicTool, "", "executor"))

	call := core.ToolCall{ID: "fc1", Name: "explode"}
	_, err := reg.Invoke(context.Background(), call, "anyone", "executor")
	toolErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "kaboom")
}

// -------------------- Error Formatting --------------------

func TestErrorFormatting(t *testing.T) {
	err := NewError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
