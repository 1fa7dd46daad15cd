package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMethod is returned when a call addresses a method index the
	// device does not expose.
	ErrUnknownMethod = errors.New("no such method")

	// ErrBuildFailed marks a method whose delegate could not be built. The
	// failure is pinned: later calls return it again without rebuilding.
	ErrBuildFailed = errors.New("method failed to build")

	// ErrInterrupted is returned when the caller stops waiting on a
	// deferred result.
	ErrInterrupted = errors.New("call interrupted")

	// ErrBadArgument is wrapped by every ArgumentError.
	ErrBadArgument = errors.New("bad argument")

	// ErrCapabilityMissing is wrapped by every CapabilityError.
	ErrCapabilityMissing = errors.New("capability missing")

	// ErrBlacklisted is returned when registering a blacklisted method.
	ErrBlacklisted = errors.New("method is blacklisted")

	// ErrDuplicateMethod is returned when two methods share an ID.
	ErrDuplicateMethod = errors.New("method already registered")

	// ErrSchedulerStopped is returned when deferred work is scheduled on a
	// domain that no longer runs.
	ErrSchedulerStopped = errors.New("scheduler stopped")

	// ErrInsufficientFuel is returned when a cost can never be paid.
	ErrInsufficientFuel = errors.New("insufficient fuel")
)

// ArgumentError reports caller-supplied arguments that failed validation.
// Index is 1-based to match what script authors see; zero means the error
// is not tied to one argument.
type ArgumentError struct {
	Index   int
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("bad argument #%d (%s)", e.Index, e.Message)
	}
	return e.Message
}

func (e *ArgumentError) Unwrap() error { return ErrBadArgument }

// NewArgumentError builds an argument error from a format string.
func NewArgumentError(format string, args ...any) error {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

// CapabilityError reports a capability or context value that is not
// available at call time. Role qualifies which side of a transfer is
// missing it ("source" or "target") and may be empty.
type CapabilityError struct {
	Capability string
	Role       string
}

func (e *CapabilityError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s has no %s", e.Role, e.Capability)
	}
	return fmt.Sprintf("no %s available", e.Capability)
}

func (e *CapabilityError) Unwrap() error { return ErrCapabilityMissing }

// CallError is the single failure type that leaves a Device. Error returns
// only the underlying message, which is what the script sees.
type CallError struct {
	Device string
	Method string
	Err    error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s failed", e.Device, e.Method)
	}
	return e.Err.Error()
}

func (e *CallError) Unwrap() error { return e.Err }

// panicError carries a recovered panic value as an error.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.value)
}

func (e *panicError) Unwrap() error {
	err, _ := e.value.(error)
	return err
}
