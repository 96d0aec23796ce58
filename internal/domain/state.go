package domain

import "time"

// State is the call session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateAwaitingRemoteSignal
	StateConnecting
	StateConnected
	StateEnding
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateAwaitingRemoteSignal:
		return "awaiting-remote-signal"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool { return s == StateEnded }

// Status is one snapshot on the session's update stream. A snapshot is
// emitted on every state transition and once per elapsed second while
// connected.
type Status struct {
	State      State
	Code       string
	RemoteUser string
	Duration   time.Duration
	HasVideo   bool
	AudioMuted bool
	VideoOff   bool
	Error      ErrorKind
}
