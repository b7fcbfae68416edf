package core

import (
	"context"
	"errors"
	"fmt"
)

// CancelledError reports that a request was abandoned because the caller's
// context ended while work was still in flight. It wraps the context cause so
// errors.Is(err, context.Canceled) and errors.Is(err, context.DeadlineExceeded)
// keep working through the chain.
type CancelledError struct {
	Op  string // operation that observed the cancellation, e.g. "agent.chat"
	Err error  // the context error (or cause) that triggered it
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying context error.
func (e *CancelledError) Unwrap() error { return e.Err }

// NewCancelledError wraps a context error observed during op. It prefers the
// context cause when one was set via context.WithCancelCause.
func NewCancelledError(op string, ctx context.Context) *CancelledError {
	err := context.Cause(ctx)
	if err == nil {
		err = ctx.Err()
	}
	return &CancelledError{Op: op, Err: err}
}

// IsCancelled reports whether err stems from context cancellation or timeout.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// InvalidConversationError reports a structural invariant violation detected
// by Conversation.Validate.
type InvalidConversationError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *InvalidConversationError) Error() string {
	return fmt.Sprintf("invalid conversation at message %d: %s", e.Index, e.Reason)
}
