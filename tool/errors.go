package tool

import (
	"fmt"
	"strings"
	"time"
)

// DuplicateToolError reports a Register call for a name that already exists.
// The registry state is unchanged after the failed call.
type DuplicateToolError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError reports an Invoke against a name no tool was registered
// under.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q not registered", e.Name)
}

// SchemaValidationError reports arguments that do not conform to the
// registered parameter schema. The handler is never executed in this case.
type SchemaValidationError struct {
	Tool   string
	Causes []string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("tool %q arguments invalid: %s", e.Tool, strings.Join(e.Causes, "; "))
}

// ToolTimeoutError reports a handler that exceeded its invocation deadline.
// The invocation counts as failed; the registry never retries.
type ToolTimeoutError struct {
	Tool    string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out after %s", e.Tool, e.Timeout)
}
