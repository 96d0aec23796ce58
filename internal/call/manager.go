// Package call implements the call session manager: local media, the peer
// engine, and the signaling choreography that rendezvouses two task
// participants through the shared document store.
package call

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
	"github.com/rizwanabdullah11/taskcall/internal/media"
)

// Capturer acquires local media. media.Capturer is the real one.
type Capturer interface {
	Capture(ctx context.Context, wantVideo bool) (*media.Stream, error)
}

// PeerFactory builds a peer engine carrying the stream's tracks and firing
// into events. rtc.NewPeer is the real one.
type PeerFactory func(stream *media.Stream, events domain.PeerEvents) (domain.PeerEngine, error)

// Options selects the media flavor of a call.
type Options struct {
	// Video requests camera capture. Audio-only calls leave it false.
	Video bool
}

// Manager creates call sessions. One session is active at a time per
// client; the manager does not enforce that, the UI layer does.
type Manager struct {
	store    domain.SignalStore
	authz    *authorizer
	capturer Capturer
	newPeer  PeerFactory
	log      *logrus.Logger
}

// NewManager wires the session dependencies together.
func NewManager(store domain.SignalStore, tasks domain.TaskDirectory, capturer Capturer, newPeer PeerFactory, log *logrus.Logger) *Manager {
	return &Manager{
		store:    store,
		authz:    newAuthorizer(tasks),
		capturer: capturer,
		newPeer:  newPeer,
		log:      log,
	}
}

// StartCall begins a call as initiator: capture media, produce the offer,
// publish the rendezvous row and offer record, then wait for an answer.
// The returned session is never nil; on error its status stream already
// reflects the failure and End is safe to call.
func (m *Manager) StartCall(ctx context.Context, self domain.Identity, taskID string, opts Options) (*Session, error) {
	s := m.newSession(self, domain.RoleInitiator)
	s.ctx = ctx
	s.taskID = taskID
	s.setState(domain.StateCapturing)

	stream, err := m.capturer.Capture(ctx, opts.Video)
	if err != nil {
		// No store writes have happened; the attempt just dies.
		s.failTerminal(ctx, err)
		return s, err
	}
	s.attachStream(stream)

	peer, err := m.newPeer(stream, s)
	if err != nil {
		err = &domain.CallError{Kind: domain.ErrKindPeerTransport, Err: fmt.Errorf("create peer: %w", err)}
		s.failTerminal(ctx, err)
		return s, err
	}
	s.attachPeer(peer)

	// Blocks until ICE gathering completes, then OnLocalDescription runs
	// the signaling writes before this returns.
	if err := peer.CreateOffer(ctx); err != nil {
		err = &domain.CallError{Kind: domain.ErrKindPeerTransport, Err: err}
		s.failTerminal(ctx, err)
		return s, err
	}
	if err := s.signalingErr(); err != nil {
		return s, err
	}
	return s, nil
}

// JoinCall begins a call as joiner: capture media, locate the pending
// offer for code, verify the caller participates in the offer's task, and
// publish the answer. Authorization runs before the offer is consumed; an
// unauthorized caller causes no store writes.
func (m *Manager) JoinCall(ctx context.Context, self domain.Identity, code string, opts Options) (*Session, error) {
	s := m.newSession(self, domain.RoleJoiner)
	s.ctx = ctx
	s.setState(domain.StateCapturing)

	stream, err := m.capturer.Capture(ctx, opts.Video)
	if err != nil {
		s.failTerminal(ctx, err)
		return s, err
	}
	s.attachStream(stream)

	offer, err := m.store.FindOffer(ctx, code)
	if err == domain.ErrNotFound {
		cerr := &domain.CallError{Kind: domain.ErrKindInvalidCode, Err: fmt.Errorf("no pending offer for code %q", code)}
		s.failIdle(cerr)
		return s, cerr
	}
	if err != nil {
		cerr := &domain.CallError{Kind: domain.ErrKindSignalingWriteFailed, Err: err}
		s.failTerminal(ctx, cerr)
		return s, cerr
	}

	if err := m.authz.canJoin(ctx, offer.TaskID, self.UserID); err != nil {
		s.failIdle(err)
		return s, err
	}

	s.mu.Lock()
	s.taskID = offer.TaskID
	s.code = offer.Code
	s.remoteUser = offer.From
	s.mu.Unlock()

	peer, err := m.newPeer(stream, s)
	if err != nil {
		err = &domain.CallError{Kind: domain.ErrKindPeerTransport, Err: fmt.Errorf("create peer: %w", err)}
		s.failTerminal(ctx, err)
		return s, err
	}
	s.attachPeer(peer)

	if err := peer.CreateAnswer(ctx, offer.SignalData); err != nil {
		err = &domain.CallError{Kind: domain.ErrKindPeerTransport, Err: err}
		s.failTerminal(ctx, err)
		return s, err
	}
	if err := s.signalingErr(); err != nil {
		return s, err
	}
	return s, nil
}

func (m *Manager) newSession(self domain.Identity, role domain.Role) *Session {
	return &Session{
		store:   m.store,
		self:    self,
		role:    role,
		state:   domain.StateIdle,
		updates: make(chan domain.Status, statusBuffer),
		done:    make(chan struct{}),
		log: m.log.WithFields(logrus.Fields{
			"component": "call",
			"role":      role,
			"user":      self.UserID,
		}),
	}
}
