// Package cdnserr defines the error taxonomy shared by the writer's
// components, so callers can errors.As a Kind regardless of which
// layer raised it.
package cdnserr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the writer's documented failure categories
// an error belongs to.
type Kind int

const (
	// IoError covers open/write/rename/close failures on the Sink.
	IoError Kind = iota
	// CompressionError covers xz/gzip stream failures.
	CompressionError
	// InvalidArgument covers bad configuration: unknown compression
	// level, empty output pattern, and similar caller mistakes.
	InvalidArgument
	// ProtocolMisuse covers out-of-order Orchestrator calls.
	ProtocolMisuse
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "io"
	case CompressionError:
		return "compression"
	case InvalidArgument:
		return "invalid argument"
	case ProtocolMisuse:
		return "protocol misuse"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the Kind of failure it
// represents and the component that raised it.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error tagging err with kind and the component name
// that observed it.
func Wrap(component string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Err: err}
}

// New builds a bare *Error with no wrapped cause, for conditions
// detected locally rather than surfaced from a lower layer.
func New(component string, kind Kind, msg string) error {
	return &Error{Kind: kind, Component: component, Err: errors.New(msg)}
}
