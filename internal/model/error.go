package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrorAuthRequired = errors.New("authentication required: connect your wallet first")
var ErrorSignInPending = errors.New("sign-in already pending")
var ErrorConnectAborted = errors.New("wallet connect aborted")
var ErrorInvalidPassphrase = errors.New("invalid passphrase")

// ValidationError reports malformed input caught before a transaction is
// constructed. It never reaches the network and is surfaced next to the
// offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransportError wraps a network or broadcast failure. The cause is kept
// for diagnostics; the UI shows a single retryable message.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func NewTransportError(op string, cause error) *TransportError {
	return &TransportError{Op: op, Cause: cause}
}

// ConfigError enumerates every missing or invalid configuration field so a
// bad environment fails fast with one actionable message.
type ConfigError struct {
	Fields []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Fields, ", "))
}
