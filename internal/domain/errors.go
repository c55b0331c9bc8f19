package domain

import (
	"errors"
	"fmt"
)

// Kind categorizes errors crossing the provider adapter boundary.
// Adapters normalize their backend's native failures (HTTP status + vendor
// body, websocket close frames, timeouts) into exactly one of these kinds
// before returning, which is what keeps the session router provider-agnostic.
type Kind string

const (
	// KindAuth indicates bad or missing credentials. Not retried.
	KindAuth Kind = "auth"
	// KindInvalidModel indicates an unknown model id. Not retried.
	KindInvalidModel Kind = "invalid_model"
	// KindNetwork indicates a timeout or connection failure. Eligible for
	// automatic reconnection on streaming providers only.
	KindNetwork Kind = "network"
	// KindBackend indicates a structured error reported by the vendor.
	// Surfaced verbatim, not retried.
	KindBackend Kind = "backend"
	// KindNotActive indicates an operation against a closed or never-opened
	// session. Fails fast, no I/O is attempted.
	KindNotActive Kind = "not_active"
	// KindUnsupportedCapability indicates a modality the active provider does
	// not offer. Fails fast, no I/O is attempted.
	KindUnsupportedCapability Kind = "unsupported_capability"
	// KindBusy indicates an initialize collision on the same provider slot.
	KindBusy Kind = "busy"
)

// SessionError is the one error shape the routing layer works with.
type SessionError struct {
	Kind    Kind
	Message string
	wrapped error
}

func (e *SessionError) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *SessionError) Unwrap() error { return e.wrapped }

// NewError builds a SessionError with an explicit kind and message.
func NewError(kind Kind, message string) *SessionError {
	return &SessionError{Kind: kind, Message: message}
}

// Errorf builds a SessionError with a formatted message.
func Errorf(kind Kind, format string, args ...any) *SessionError {
	return &SessionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error. An error that is already
// a SessionError keeps its original kind.
func WrapError(err error, kind Kind, message string) *SessionError {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return se
	}
	return &SessionError{Kind: kind, Message: message, wrapped: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// KindBackend, the non-retryable catch-all.
func KindOf(err error) Kind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindBackend
}

func classify(kind Kind) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}
		var se *SessionError
		if errors.As(err, &se) {
			return se.Kind == kind
		}
		return false
	}
}

// Predicates for common error handling patterns.
var (
	IsAuth                  = classify(KindAuth)
	IsInvalidModel          = classify(KindInvalidModel)
	IsNetwork               = classify(KindNetwork)
	IsBackend               = classify(KindBackend)
	IsNotActive             = classify(KindNotActive)
	IsUnsupportedCapability = classify(KindUnsupportedCapability)
	IsBusy                  = classify(KindBusy)
)
