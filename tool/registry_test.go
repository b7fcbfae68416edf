package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
)

func sumTool() *FunctionTool {
	return NewFunctionTool("sum", "Add two numbers", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

// -------------------- Registration Tests --------------------

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sumTool()))

	before := r.Definitions()

	err := r.Register(sumTool())
	var dup *DuplicateToolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "sum", dup.Name)

	// Failed registration leaves the registry unchanged.
	assert.Equal(t, before, r.Definitions())
	assert.Equal(t, []string{"sum"}, r.Names())
}

func TestRegistry_RegisterBadSchema(t *testing.T) {
	r := NewRegistry()
	bad := NewFunctionTool("bad", "Broken schema", map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": 42}},
	}, func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })

	err := r.Register(bad)
	require.Error(t, err)
	assert.False(t, r.Has("bad"))
}

func TestRegistry_DefinitionsMatchParameters(t *testing.T) {
	r := NewRegistry()
	st := sumTool()
	require.NoError(t, r.Register(st))
	require.NoError(t, r.Register(NewCalculator()))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	// Sorted by name; schema is byte-for-byte the tool's own schema.
	assert.Equal(t, "calculator", defs[0].Function.Name)
	assert.Equal(t, "sum", defs[1].Function.Name)
	assert.Equal(t, st.Parameters(), defs[1].Function.Parameters)

	subset := r.Definitions("sum")
	require.Len(t, subset, 1)
	assert.Equal(t, "sum", subset[0].Function.Name)
}

// -------------------- Invoke Tests --------------------

func TestRegistry_InvokeSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sumTool()))

	result, err := r.Invoke(context.Background(), core.ToolCall{
		ID: "c1", Name: "sum", Arguments: `{"a":2,"b":3}`,
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestRegistry_InvokeUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "missing"})
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}

func TestRegistry_InvokeSchemaViolationNeverReachesHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	guard := NewFunctionTool("guard", "Guarded", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n": map[string]any{"type": "integer"},
		},
		"required": []string{"n"},
	}, func(_ context.Context, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, r.Register(guard))

	// Missing required field.
	_, err := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "guard", Arguments: `{}`})
	var sve *SchemaValidationError
	require.ErrorAs(t, err, &sve)
	assert.Equal(t, "guard", sve.Tool)
	assert.NotEmpty(t, sve.Causes)

	// Wrong type.
	_, err = r.Invoke(context.Background(), core.ToolCall{ID: "c2", Name: "guard", Arguments: `{"n":"NaN"}`})
	require.ErrorAs(t, err, &sve)

	// Malformed JSON.
	_, err = r.Invoke(context.Background(), core.ToolCall{ID: "c3", Name: "guard", Arguments: `{"n":`})
	require.ErrorAs(t, err, &sve)

	assert.False(t, called)
}

func TestRegistry_InvokeTimeout(t *testing.T) {
	r := NewRegistry()
	slow := NewFunctionTool("slow", "Sleeps", map[string]any{"type": "object"},
		func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	require.NoError(t, r.Register(slow))

	_, err := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "slow", Arguments: `{}`},
		func(o *InvokeOptions) { o.Timeout = 50 * time.Millisecond })
	var timeout *ToolTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "slow", timeout.Tool)
}

func TestRegistry_InvokePanicIsolated(t *testing.T) {
	r := NewRegistry()
	panicky := NewFunctionTool("panicky", "Panics", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			panic("boom")
		})
	require.NoError(t, r.Register(panicky))

	_, err := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "panicky", Arguments: `{}`})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.Contains(t, toolErr.Message, "boom")
}

func TestRegistry_InvokeHandlerError(t *testing.T) {
	r := NewRegistry()
	failing := NewFunctionTool("failing", "Fails", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("backend unavailable")
		})
	require.NoError(t, r.Register(failing))

	_, err := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "failing", Arguments: `{}`})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.Equal(t, "backend unavailable", toolErr.Message)
}

func TestRegistry_InvokeCancellationSignalsHandler(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	stopped := false
	recording := NewFunctionTool("recording", "Records cancellation", map[string]any{"type": "object"},
		func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			mu.Lock()
			stopped = true
			mu.Unlock()
			return nil, ctx.Err()
		})
	require.NoError(t, r.Register(recording))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Invoke(ctx, core.ToolCall{ID: "c1", Name: "recording", Arguments: `{}`})
	var cancelled *core.CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.True(t, errors.Is(err, context.Canceled))

	// The handler observed its context ending.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stopped
	}, time.Second, 10*time.Millisecond)
}

func TestRegistry_ConcurrentInvokesAreIsolated(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sumTool()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := r.Invoke(context.Background(), core.ToolCall{
				ID:        fmt.Sprintf("c%d", n),
				Name:      "sum",
				Arguments: fmt.Sprintf(`{"a":%d,"b":1}`, n),
			})
			assert.NoError(t, err)
			assert.Equal(t, float64(n+1), result)
		}(i)
	}
	wg.Wait()
}
