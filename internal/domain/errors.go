package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies call failures for the UI layer. Kinds are terminal
// to the current call attempt and are surfaced on the status stream, never
// thrown across a store-subscription boundary.
type ErrorKind string

const (
	ErrKindNone                   ErrorKind = ""
	ErrKindMediaAccessDenied      ErrorKind = "MediaAccessDenied"
	ErrKindMediaDeviceUnavailable ErrorKind = "MediaDeviceUnavailable"
	ErrKindInvalidCode            ErrorKind = "InvalidCode"
	ErrKindSignalingWriteFailed   ErrorKind = "SignalingWriteFailed"
	ErrKindPeerTransport          ErrorKind = "PeerTransportError"
	ErrKindNotAuthorized          ErrorKind = "NotAuthorized"
)

// CallError pairs an ErrorKind with its cause.
type CallError struct {
	Kind ErrorKind
	Err  error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or ErrKindNone if it carries none.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindNone
}

// Store sentinels.
var (
	// ErrNotFound is returned by store lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrCodeTaken is returned when a pending call with the same code
	// already exists. Codes are unguessable, so in practice this only
	// fires on the retry path after a partial write.
	ErrCodeTaken = errors.New("call code already taken")
)
