package domain

import (
	"context"
	"time"
)

// Unsubscribe cancels a store subscription. Every subscription has exactly
// one matching Unsubscribe call on every session exit path.
type Unsubscribe func()

// SignalStore relays signaling messages between peers through the shared
// document store. Subscriptions deliver matching records at least once;
// consumers must tolerate duplicate delivery.
type SignalStore interface {
	// CreateCallRecord appends one signaling message and returns its id.
	CreateCallRecord(ctx context.Context, rec *CallRecord) (string, error)
	// FindOffer returns the first offer record for code, or ErrNotFound.
	// Late-arriving duplicate offers for the same code are never returned.
	FindOffer(ctx context.Context, code string) (*CallRecord, error)
	// CreateActiveCall creates the rendezvous row. Returns ErrCodeTaken
	// when a pending session with the same code already exists.
	CreateActiveCall(ctx context.Context, sess *ActiveCallSession) (string, error)
	// SetReceiver records the joiner's identity on the rendezvous row.
	SetReceiver(ctx context.Context, code, userID string) error
	// EndActiveCall marks the session ended. Idempotent: tolerates the row
	// already being ended if the remote side ended first.
	EndActiveCall(ctx context.Context, code string, endedAt time.Time) error
	// SubscribeAnswers delivers answer records for code as they appear.
	SubscribeAnswers(ctx context.Context, code string, fn func(CallRecord)) (Unsubscribe, error)
	// SubscribeStatus delivers the rendezvous row for code on every change.
	SubscribeStatus(ctx context.Context, code string, fn func(ActiveCallSession)) (Unsubscribe, error)
}

// TaskDirectory resolves tasks for join authorization.
type TaskDirectory interface {
	FindTask(ctx context.Context, id string) (*Task, error)
}

// PeerEvents is the closed set of callbacks a peer engine fires. The call
// session implements it; the engine never sees session internals.
type PeerEvents interface {
	// OnLocalDescription fires once the local description is complete,
	// ICE candidates included (trickling is disabled).
	OnLocalDescription(sdp SDPPayload)
	// OnRemoteTrack fires for each media track received from the peer.
	OnRemoteTrack(track RemoteTrack)
	// OnConnected fires when the transport reaches the connected state.
	OnConnected()
	// OnClosed fires when the transport closes or disconnects; treated as
	// a remote hangup.
	OnClosed()
	// OnError fires on a fatal transport failure.
	OnError(err error)
}

// PeerEngine drives one peer connection. Exactly one of CreateOffer or
// CreateAnswer is called, according to role; Close is safe to call from
// any state and more than once.
type PeerEngine interface {
	CreateOffer(ctx context.Context) error
	CreateAnswer(ctx context.Context, offer SDPPayload) error
	// AcceptAnswer applies the remote answer. Applying the same answer
	// twice is a no-op and must not restart negotiation.
	AcceptAnswer(answer SDPPayload) error
	Close() error
}
