package brokerage

import (
	"errors"
	"fmt"
)

// ErrBrokerNotFound means the broker id does not resolve in the caller's
// scope.
var ErrBrokerNotFound = errors.New("broker not found")

// ValidationError is a client fault detected before any I/O: malformed
// order tree, unsupported market or exchange, missing required prices.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CredentialError is a client fault reported by the exchange: the key pair
// lacks the required permissions. Broker state is left unchanged.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string {
	return "credentials: " + e.Reason
}

// UpstreamError wraps an exchange or client I/O failure. These are surfaced
// to the caller as-is; there is no retry policy in this layer.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}
