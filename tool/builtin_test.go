package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
)

func testCall(name, args string) core.ToolCall {
	return core.ToolCall{ID: core.NewID(), Name: name, Arguments: args}
}

// -------------------- Calculator Tests --------------------

func TestCalculator_Operations(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
		want float64
	}{
		{"add", map[string]interface{}{"operation": "add", "a": 2.0, "b": 3.0}, 5},
		{"subtract", map[string]interface{}{"operation": "subtract", "a": 10.0, "b": 4.0}, 6},
		{"multiply", map[string]interface{}{"operation": "multiply", "a": 6.0, "b": 7.0}, 42},
		{"divide", map[string]interface{}{"operation": "divide", "a": 9.0, "b": 3.0}, 3},
		{"power", map[string]interface{}{"operation": "power", "a": 2.0, "b": 10.0}, 1024},
		{"sqrt", map[string]interface{}{"operation": "sqrt", "a": 49.0}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := calc.Call(ctx, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestCalculator_Errors(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	_, err := calc.Call(ctx, map[string]interface{}{"operation": "divide", "a": 1.0, "b": 0.0})
	assert.ErrorContains(t, err, "division by zero")

	_, err = calc.Call(ctx, map[string]interface{}{"operation": "sqrt", "a": -4.0})
	assert.ErrorContains(t, err, "negative")

	_, err = calc.Call(ctx, map[string]interface{}{"operation": "modulo", "a": 1.0})
	assert.ErrorContains(t, err, "unsupported operation")
}

func TestCalculator_RegistersAndValidates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewCalculator()))

	// Enum violation is caught before the handler runs.
	_, err := r.Invoke(context.Background(), testCall("calculator", `{"operation":"modulo","a":1}`))
	var sve *SchemaValidationError
	require.ErrorAs(t, err, &sve)
}

// -------------------- HTTP Tool Tests --------------------

func TestHTTPRequest_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	ht := NewHTTPRequest()
	result, err := ht.Call(context.Background(), map[string]interface{}{"url": srv.URL})
	require.NoError(t, err)

	out, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, out["status"])
	assert.Equal(t, "hello", out["body"])
}

func TestHTTPRequest_MethodAndTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	ht := NewHTTPRequest(func(o *HTTPRequestOptions) { o.MaxResponseBytes = 10 })
	result, err := ht.Call(context.Background(), map[string]interface{}{"url": srv.URL, "method": "post"})
	require.NoError(t, err)

	out := result.(map[string]interface{})
	assert.Len(t, out["body"], 10)
}

func TestHTTPRequest_BadURL(t *testing.T) {
	ht := NewHTTPRequest()
	_, err := ht.Call(context.Background(), map[string]interface{}{"url": "http://127.0.0.1:1"})
	assert.Error(t, err)
}

// -------------------- Function Tool Tests --------------------

func TestFunctionToolFromStruct(t *testing.T) {
	type WeatherArgs struct {
		City string `json:"city" description:"City name"`
		Unit string `json:"unit,omitempty" description:"Temperature unit" enum:"celsius,fahrenheit"`
	}

	ft := NewFunctionToolFromStruct("get_weather", "Get current weather", WeatherArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			return "sunny in " + args["city"].(string), nil
		})

	params := ft.Parameters()
	assert.Equal(t, "object", params["type"])

	props := params["properties"].(map[string]any)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "unit")

	required, _ := params["required"].([]string)
	assert.Contains(t, required, "city")
	assert.NotContains(t, required, "unit")

	r := NewRegistry()
	require.NoError(t, r.Register(ft))

	result, err := r.Invoke(context.Background(), testCall("get_weather", `{"city":"Berlin"}`))
	require.NoError(t, err)
	assert.Equal(t, "sunny in Berlin", result)

	_, err = r.Invoke(context.Background(), testCall("get_weather", `{"city":"Berlin","unit":"kelvin"}`))
	var sve *SchemaValidationError
	require.ErrorAs(t, err, &sve)
}
