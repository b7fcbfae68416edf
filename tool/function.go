package tool

import (
	"context"

	"github.com/hupe1980/agentkit/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// tool. It holds the JSON schema for its arguments and the implementation;
// validation, timeout and panic isolation happen in the Registry, so the
// function body can assume conforming arguments.
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(_ context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (json, description and enum tags; pointer/omitempty fields are
// optional). Convenience for simple argument containers.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool := NewFunctionToolFromStruct("calculate_sum", "Add two numbers", SumArgs{}, fn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique tool name used in declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the wrapped function. Arguments have already been validated by
// the registry when dispatch happens through it.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}
