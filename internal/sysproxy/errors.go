package sysproxy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an adapter failure.
type ErrorKind int

const (
	// ToolUnavailable means the mechanism is not present on this machine.
	ToolUnavailable ErrorKind = iota
	// Unsupported means the surface cannot express this kind of target.
	Unsupported
	// CommandFailed means an external tool or API call failed.
	CommandFailed
	// IOError means a file could not be read or written.
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case ToolUnavailable:
		return "tool unavailable"
	case Unsupported:
		return "unsupported"
	case CommandFailed:
		return "command failed"
	case IOError:
		return "io error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Soft reports whether the kind is a skip rather than a failure.
func (k ErrorKind) Soft() bool {
	return k == ToolUnavailable || k == Unsupported
}

// Error is returned by adapters.
type Error struct {
	Adapter string
	Op      string
	Kind    ErrorKind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Adapter, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSoft reports whether err is a soft skip. A nil error is not soft.
func IsSoft(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Soft()
	}
	return false
}

// KindOf returns the kind of an adapter error. Errors that did not come from
// an adapter count as CommandFailed.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return CommandFailed
}
