package model

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ProviderError is the uniform failure envelope for model backends. Transient
// marks conditions safe to retry or fall back on (rate limits, 5xx, network
// timeouts); non-transient failures indicate a caller mistake (bad request,
// auth) that retrying against another backend would only reproduce.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when no HTTP status applies
	Message    string
	Transient  bool
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s error (status %d): %s", e.Provider, kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s error: %s", e.Provider, kind, e.Message)
}

// Unwrap exposes the underlying SDK error.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps an SDK failure, classifying transience from the HTTP
// status code. Pass status 0 for non-HTTP failures; those are classified from
// the error itself (network timeouts and resets count as transient).
func NewProviderError(provider string, status int, err error) *ProviderError {
	transient := TransientStatus(status)
	if status == 0 {
		transient = isNetworkTransient(err)
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    msg,
		Transient:  transient,
		Err:        err,
	}
}

// TransientStatus reports whether an HTTP status code signals a retryable
// condition: timeouts, rate limits and 5xx-class failures.
func TransientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

func isNetworkTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransient reports whether any error in the chain is a transient provider
// failure. Unclassified errors are treated as terminal so that nothing is
// retried blindly.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return isNetworkTransient(err)
}
