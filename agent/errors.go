package agent

import "fmt"

// ToolLoopExceededError reports that the model kept requesting tools past
// the configured iteration bound without producing a final answer. The
// fallback layer treats it as retryable; another model may converge.
type ToolLoopExceededError struct {
	Limit int
}

// Error implements the error interface.
func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d iterations without a final answer", e.Limit)
}

// AllProvidersExhaustedError reports that every agent in a fallback chain
// failed. Err holds the last failure.
type AllProvidersExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all %d providers exhausted: %v", e.Attempts, e.Err)
}

// Unwrap exposes the last underlying failure.
func (e *AllProvidersExhaustedError) Unwrap() error { return e.Err }
