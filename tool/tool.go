// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, side effects) with
// schema validated arguments, consistent error handling and isolated,
// time-bounded execution.
package tool

import (
	"context"
	"fmt"
)

// Error codes carried by ToolError for categorization.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
	CodeTimeout         = "TIMEOUT"
)

// Tool defines the capability interface for extending agent behavior with
// external functions. Dispatch is by name through a Registry, never by type.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended) and descriptions
//   - Define a proper JSON schema for parameters; the exact schema returned
//     here is what the registry validates arguments against and what the
//     model sees as the wire contract
//   - Respect ctx cancellation in Call; the registry enforces a deadline
//   - Be safe for concurrent use after construction
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]interface{}

	// Call executes the tool with already-validated arguments. The returned
	// value can be any JSON-serializable Go type; errors are wrapped into
	// *ToolError by the registry unless they already are one.
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ToolError represents a failure during tool execution. It is the recoverable
// envelope: the agent loop serializes it into a tool-role message so the
// model gets a chance to react.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
