// Package media owns local capture: camera/microphone acquisition with the
// audio-only fallback policy, and track lifecycle for one call.
package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// LocalTrack is a captured track attachable to a peer connection.
type LocalTrack interface {
	webrtc.TrackLocal
	Close() error
}

// EngineConfigurator registers the codecs the captured tracks are encoded
// with. Nil means the default codec set.
type EngineConfigurator func(*webrtc.MediaEngine) error

// Stream is the local media for one call. It is exclusively owned by one
// call session; Stop releases the devices and is safe to call repeatedly.
type Stream struct {
	mu        sync.Mutex
	tracks    []LocalTrack
	engine    EngineConfigurator
	audioGate *gate
	videoGate *gate
	hasVideo  bool
	audioOn   bool
	videoOn   bool
	stopped   bool
}

// NewStream wraps captured tracks. hasVideo records whether a video track
// was captured; the remote side renders an audio-only placeholder from the
// rendezvous row's flag, not from track inspection. Each track is gated by
// kind so the toggles can suppress its outbound packets.
func NewStream(tracks []LocalTrack, hasVideo bool, engine EngineConfigurator) *Stream {
	s := &Stream{
		engine:    engine,
		audioGate: &gate{},
		videoGate: &gate{},
		hasVideo:  hasVideo,
		audioOn:   true,
		videoOn:   hasVideo,
	}
	s.audioGate.set(true)
	s.videoGate.set(hasVideo)
	for _, t := range tracks {
		g := s.audioGate
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			g = s.videoGate
		}
		s.tracks = append(s.tracks, &gatedTrack{LocalTrack: t, gate: g})
	}
	return s
}

// Tracks returns the captured tracks.
func (s *Stream) Tracks() []LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

// HasVideo reports whether the stream carries a video track.
func (s *Stream) HasVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasVideo
}

// ConfigureEngine registers this stream's codecs on a media engine.
func (s *Stream) ConfigureEngine(me *webrtc.MediaEngine) error {
	if s.engine != nil {
		return s.engine(me)
	}
	return me.RegisterDefaultCodecs()
}

// ToggleAudio flips the local audio mute and returns the new muted state.
// Toggles are local-only: while muted the audio tracks' outbound packets
// are dropped, so the remote peer observes silence through the media
// transport; nothing is signaled through the store.
func (s *Stream) ToggleAudio() bool {
	s.mu.Lock()
	s.audioOn = !s.audioOn
	muted := !s.audioOn
	s.audioGate.set(s.audioOn)
	s.mu.Unlock()
	return muted
}

// ToggleVideo flips the local video and returns the new disabled state.
// While off the video tracks' outbound packets are dropped; the remote
// peer sees a frozen frame.
func (s *Stream) ToggleVideo() bool {
	s.mu.Lock()
	s.videoOn = !s.videoOn
	off := !s.videoOn
	s.videoGate.set(s.videoOn)
	s.mu.Unlock()
	return off
}

// AudioMuted reports the local mute flag.
func (s *Stream) AudioMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.audioOn
}

// VideoOff reports the local video-disabled flag.
func (s *Stream) VideoOff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.videoOn
}

// Stop closes all tracks and releases the devices. Idempotent.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	tracks := s.tracks
	s.mu.Unlock()

	for _, t := range tracks {
		_ = t.Close()
	}
}

// Stopped reports whether Stop has run, for tests.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
