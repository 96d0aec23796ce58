package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
	"github.com/rizwanabdullah11/taskcall/internal/media"
)

const (
	// statusBuffer sizes the update stream. A slow consumer loses
	// intermediate snapshots, never the session itself.
	statusBuffer = 32
	// maxCodeAttempts bounds call-code regeneration on collision.
	maxCodeAttempts = 3
)

// Session is one call attempt, initiator or joiner side. It implements
// domain.PeerEvents and owns the media stream, the peer engine, and the
// store subscriptions; End releases all three on every exit path.
type Session struct {
	store domain.SignalStore
	self  domain.Identity
	role  domain.Role
	log   *logrus.Entry

	ctx     context.Context
	updates chan domain.Status
	done    chan struct{}
	endOnce sync.Once

	mu            sync.Mutex
	state         domain.State
	taskID        string
	code          string
	remoteUser    string
	hasVideo      bool
	errKind       domain.ErrorKind
	lastErr       error
	stream        *media.Stream
	peer          domain.PeerEngine
	unsubs        []domain.Unsubscribe
	signaled      bool
	answerApplied bool
	transportUp   bool
	remoteMedia   bool
	endStarted    bool
	closedUpdates bool
	connectedAt   time.Time
	duration      time.Duration
	tickerStop    chan struct{}
}

// Updates returns the status stream. It is closed when the session ends.
func (s *Session) Updates() <-chan domain.Status { return s.updates }

// Done is closed once the session has fully ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns the current snapshot.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Code returns the call code once assigned, empty before.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// ToggleAudio flips the local audio mute and reports the new muted state.
func (s *Session) ToggleAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false
	}
	muted := s.stream.ToggleAudio()
	s.emitLocked()
	return muted
}

// ToggleVideo flips the local video and reports whether video is now off.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false
	}
	off := s.stream.ToggleVideo()
	s.emitLocked()
	return off
}

func (s *Session) attachStream(stream *media.Stream) {
	s.mu.Lock()
	s.stream = stream
	s.hasVideo = stream.HasVideo()
	s.mu.Unlock()
}

func (s *Session) attachPeer(peer domain.PeerEngine) {
	s.mu.Lock()
	s.peer = peer
	s.mu.Unlock()
}

func (s *Session) signalingErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OnLocalDescription receives the complete local description and runs the
// role's signaling writes: the initiator publishes the rendezvous row and
// offer, the joiner publishes the answer.
func (s *Session) OnLocalDescription(sdp domain.SDPPayload) {
	switch s.role {
	case domain.RoleInitiator:
		s.publishOffer(sdp)
	case domain.RoleJoiner:
		s.publishAnswer(sdp)
	}
}

func (s *Session) publishOffer(sdp domain.SDPPayload) {
	s.mu.Lock()
	ctx, taskID, hasVideo := s.ctx, s.taskID, s.hasVideo
	s.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		code = newCallCode()
		_, err := s.store.CreateActiveCall(ctx, &domain.ActiveCallSession{
			Code:      code,
			TaskID:    taskID,
			Initiator: s.self.UserID,
			Status:    domain.CallPending,
			CreatedAt: time.Now().UTC(),
			HasVideo:  hasVideo,
		})
		if err == domain.ErrCodeTaken && attempt+1 < maxCodeAttempts {
			s.log.WithField("code", code).Warn("call code collision, regenerating")
			continue
		}
		if err != nil {
			s.failWrite(fmt.Errorf("create active call: %w", err))
			return
		}
		break
	}

	s.mu.Lock()
	s.code = code
	s.signaled = true
	s.mu.Unlock()

	_, err := s.store.CreateCallRecord(ctx, &domain.CallRecord{
		Code:       code,
		TaskID:     taskID,
		From:       s.self.UserID,
		SignalData: sdp,
		Type:       domain.SignalOffer,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.failWrite(fmt.Errorf("write offer: %w", err))
		return
	}

	unsubAns, err := s.store.SubscribeAnswers(ctx, code, s.onAnswer)
	if err != nil {
		s.failWrite(fmt.Errorf("subscribe answers: %w", err))
		return
	}
	unsubStatus, err := s.store.SubscribeStatus(ctx, code, s.onRemoteStatus)
	if err != nil {
		unsubAns()
		s.failWrite(fmt.Errorf("subscribe status: %w", err))
		return
	}

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsubAns, unsubStatus)
	s.mu.Unlock()

	s.log.WithField("code", code).Info("offer published")
	s.setState(domain.StateAwaitingRemoteSignal)
}

func (s *Session) publishAnswer(sdp domain.SDPPayload) {
	s.mu.Lock()
	ctx, code, taskID, remote := s.ctx, s.code, s.taskID, s.remoteUser
	s.mu.Unlock()

	_, err := s.store.CreateCallRecord(ctx, &domain.CallRecord{
		Code:       code,
		TaskID:     taskID,
		From:       s.self.UserID,
		To:         remote,
		SignalData: sdp,
		Type:       domain.SignalAnswer,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.failWrite(fmt.Errorf("write answer: %w", err))
		return
	}

	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()

	// Best effort: the call works without the receiver name on the row.
	if err := s.store.SetReceiver(ctx, code, s.self.UserID); err != nil {
		s.log.WithError(err).Warn("set receiver")
	}

	unsub, err := s.store.SubscribeStatus(ctx, code, s.onRemoteStatus)
	if err != nil {
		s.failWrite(fmt.Errorf("subscribe status: %w", err))
		return
	}
	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()

	s.log.WithField("code", code).Info("answer published")
	s.setState(domain.StateAwaitingRemoteSignal)
}

// onAnswer applies the joiner's answer. Snapshot replay delivers the same
// record more than once; only the first application does anything.
func (s *Session) onAnswer(rec domain.CallRecord) {
	s.mu.Lock()
	if rec.From == s.self.UserID || s.answerApplied || s.endStarted ||
		s.peer == nil || s.state == domain.StateFailed || s.state == domain.StateIdle {
		s.mu.Unlock()
		return
	}
	s.answerApplied = true
	s.remoteUser = rec.From
	peer := s.peer
	s.mu.Unlock()

	if err := peer.AcceptAnswer(rec.SignalData); err != nil {
		s.fail(&domain.CallError{Kind: domain.ErrKindPeerTransport, Err: fmt.Errorf("apply answer: %w", err)})
		return
	}
	s.log.WithField("from", rec.From).Info("answer applied")
	s.setState(domain.StateConnecting)
}

// onRemoteStatus mirrors the rendezvous row: a remote hangup ends the
// local session, and the initiator learns the receiver's identity from it.
func (s *Session) onRemoteStatus(row domain.ActiveCallSession) {
	s.mu.Lock()
	if row.Receiver != "" && s.role == domain.RoleInitiator && s.remoteUser == "" {
		s.remoteUser = row.Receiver
		s.emitLocked()
	}
	ended := row.Status == domain.CallEnded
	started := s.endStarted
	s.mu.Unlock()

	if ended && !started {
		s.log.Info("remote side ended the call")
		go s.End(context.Background())
	}
}

// OnRemoteTrack marks remote media as flowing.
func (s *Session) OnRemoteTrack(track domain.RemoteTrack) {
	s.log.WithField("kind", track.Kind).Debug("remote track")
	s.mu.Lock()
	s.remoteMedia = true
	s.maybeConnectedLocked()
	s.mu.Unlock()
}

// OnConnected marks the transport as up. The session is Connected only
// once remote media has arrived as well.
func (s *Session) OnConnected() {
	s.mu.Lock()
	s.transportUp = true
	if s.state == domain.StateAwaitingRemoteSignal {
		s.setStateLocked(domain.StateConnecting)
	}
	s.maybeConnectedLocked()
	s.mu.Unlock()
}

func (s *Session) maybeConnectedLocked() {
	if !s.transportUp || !s.remoteMedia {
		return
	}
	if s.state != domain.StateAwaitingRemoteSignal && s.state != domain.StateConnecting {
		return
	}
	s.connectedAt = time.Now()
	s.setStateLocked(domain.StateConnected)
	s.startTickerLocked()
}

// OnClosed treats a transport close as a hangup.
func (s *Session) OnClosed() {
	s.mu.Lock()
	started := s.endStarted
	s.mu.Unlock()
	if started {
		return
	}
	go s.End(context.Background())
}

// OnError is a fatal transport failure: surface it and tear down.
func (s *Session) OnError(err error) {
	s.fail(&domain.CallError{Kind: domain.ErrKindPeerTransport, Err: err})
}

// End tears the session down: stop media, close the peer, cancel the
// subscriptions, and mark the rendezvous row ended. Safe to call from any
// state and more than once.
func (s *Session) End(ctx context.Context) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.endStarted = true
		if s.state != domain.StateIdle && s.state != domain.StateFailed {
			s.setStateLocked(domain.StateEnding)
		}
		stream, peer := s.stream, s.peer
		unsubs := s.unsubs
		s.unsubs = nil
		signaled, code := s.signaled, s.code
		if s.tickerStop != nil {
			close(s.tickerStop)
			s.tickerStop = nil
		}
		s.mu.Unlock()

		// Unsubscribe before the store write so our own terminal status
		// is not replayed back into this session.
		for _, unsub := range unsubs {
			unsub()
		}
		if stream != nil {
			stream.Stop()
		}
		if peer != nil {
			if err := peer.Close(); err != nil {
				s.log.WithError(err).Warn("close peer")
			}
		}
		if signaled && code != "" {
			if err := s.store.EndActiveCall(ctx, code, time.Now().UTC()); err != nil {
				s.log.WithError(err).Warn("end active call")
			}
		}

		s.mu.Lock()
		s.setStateLocked(domain.StateEnded)
		s.closedUpdates = true
		close(s.updates)
		s.mu.Unlock()
		close(s.done)
		s.log.Info("session ended")
	})
}

// fail records the error, surfaces StateFailed, then runs the full End
// cleanup so no resource outlives the failure.
func (s *Session) fail(err error) {
	s.failTerminal(context.Background(), err)
}

func (s *Session) failTerminal(ctx context.Context, err error) {
	s.recordErr(err)
	s.setState(domain.StateFailed)
	s.log.WithError(err).Error("call attempt failed")
	s.End(ctx)
}

// failWrite handles a signaling write failure: the session surfaces
// StateFailed but keeps its resources so the caller decides when to End.
func (s *Session) failWrite(err error) {
	cerr := &domain.CallError{Kind: domain.ErrKindSignalingWriteFailed, Err: err}
	s.recordErr(cerr)
	s.log.WithError(err).Error("signaling write failed")
	s.setState(domain.StateFailed)
}

// failIdle handles pre-signaling rejections (bad code, not authorized):
// release captured media and return to idle, no store writes.
func (s *Session) failIdle(err error) {
	s.recordErr(err)
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}
	s.log.WithError(err).Warn("call attempt rejected")
	s.setState(domain.StateIdle)
}

func (s *Session) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.errKind = domain.KindOf(err)
	s.mu.Unlock()
}

func (s *Session) setState(st domain.State) {
	s.mu.Lock()
	s.setStateLocked(st)
	s.mu.Unlock()
}

func (s *Session) setStateLocked(st domain.State) {
	if s.state.Terminal() {
		return
	}
	s.state = st
	s.log.WithField("state", st.String()).Debug("state")
	s.emitLocked()
}

func (s *Session) snapshotLocked() domain.Status {
	st := domain.Status{
		State:      s.state,
		Code:       s.code,
		RemoteUser: s.remoteUser,
		Duration:   s.duration,
		HasVideo:   s.hasVideo,
		Error:      s.errKind,
	}
	if s.stream != nil {
		st.AudioMuted = s.stream.AudioMuted()
		st.VideoOff = s.stream.VideoOff()
	}
	return st
}

// emitLocked pushes a snapshot without blocking. Callers hold s.mu.
func (s *Session) emitLocked() {
	if s.closedUpdates {
		return
	}
	select {
	case s.updates <- s.snapshotLocked():
	default:
		s.log.Debug("status consumer lagging, snapshot dropped")
	}
}

func (s *Session) startTickerLocked() {
	stop := make(chan struct{})
	s.tickerStop = stop
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.state == domain.StateConnected {
					s.duration = time.Since(s.connectedAt).Round(time.Second)
					s.emitLocked()
				}
				s.mu.Unlock()
			}
		}
	}()
}
