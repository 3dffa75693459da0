// Package perrors implements the error taxonomy and per-pip outcome variant
// used throughout the fingerprinting and caching engine.
package perrors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code identifies which member of the error taxonomy an Error belongs to.
type Code int

const (
	// CodeConfig indicates malformed or contradictory configuration,
	// surfaced before any pip runs.
	CodeConfig Code = iota + 1
	// CodeGraph indicates a duplicate producer, a cycle, or invalid seal
	// contents; fatal.
	CodeGraph
	// CodeAccessPolicyViolation indicates an observation lies outside
	// declared dependencies and the pip does not allow undeclared reads.
	CodeAccessPolicyViolation
	// CodeHashFailure indicates content hashing failed (file vanished,
	// permission denied).
	CodeHashFailure
	// CodeCacheInfrastructure indicates the cache backend is unreachable.
	CodeCacheInfrastructure
	// CodeInternalInvariantViolation indicates an assertion failure in the
	// observed-input processor's typing pass.
	CodeInternalInvariantViolation
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case CodeConfig:
		return "ConfigError"
	case CodeGraph:
		return "GraphError"
	case CodeAccessPolicyViolation:
		return "AccessPolicyViolation"
	case CodeHashFailure:
		return "HashFailure"
	case CodeCacheInfrastructure:
		return "CacheInfrastructureError"
	case CodeInternalInvariantViolation:
		return "InternalInvariantViolation"
	default:
		return "UnknownError"
	}
}

// Retryable reports whether errors of this code are, by their nature,
// potentially transient. Only HashFailure carries retry semantics, and only
// when the underlying cause is itself classified as transient by the host.
func (c Code) Retryable() bool {
	return c == CodeHashFailure
}

// Error is the concrete error type for every member of the taxonomy. Each
// Error carries a stable numeric event ID for telemetry, independent of its
// Code, so that dashboards built against event IDs survive message wording
// changes.
type Error struct {
	// Code identifies the taxonomy member.
	Code Code
	// EventID is a stable numeric identifier for telemetry.
	EventID int
	// Message is a human-readable description.
	Message string
	// Retryable overrides Code.Retryable when a specific transient
	// condition (e.g. a host-reported transient I/O error) was detected.
	Retryable bool
	// cause is the wrapped underlying error, if any.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a new taxonomy error with the given code, event ID, and
// message, wrapping cause (which may be nil) with a stack-carrying wrap so
// that diagnostic dumps retain the original call site.
func New(code Code, eventID int, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.Wrap(cause, message)
	}
	return &Error{
		Code:    code,
		EventID: eventID,
		Message: message,
		cause:   wrapped,
	}
}

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, &perrors.Error{Code: CodeHashFailure}) style checks are possible
// via a sentinel comparator. Most callers should instead use CodeOf.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error, returning
// ok=false otherwise.
func CodeOf(err error) (Code, bool) {
	var taxErr *Error
	if errors.As(err, &taxErr) {
		return taxErr.Code, true
	}
	return 0, false
}
