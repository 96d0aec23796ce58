// Package rtc wraps the Pion peer connection behind the domain.PeerEngine
// port. Trickling is disabled: each side produces exactly one session
// description with all ICE candidates batched in, so the signaling store
// carries one message per side and candidate-ordering bugs cannot happen.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/sirupsen/logrus"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
	"github.com/rizwanabdullah11/taskcall/internal/media"
)

const pliInterval = 3 * time.Second

// Config is the static peer-engine configuration.
type Config struct {
	// STUNURLs are the STUN servers used for candidate discovery.
	STUNURLs []string
	// VideoOut, when set, receives the remote video stream: raw Annex-B
	// for H264, IVF for VP8/VP9. Nil means remote video is drained.
	VideoOut io.Writer
	Log      *logrus.Logger
}

// Peer implements domain.PeerEngine over a Pion PeerConnection.
type Peer struct {
	pc       *webrtc.PeerConnection
	events   domain.PeerEvents
	videoOut io.Writer
	log      *logrus.Entry
	done     chan struct{}

	mu            sync.Mutex
	remoteApplied bool
	closed        bool
}

// NewPeer builds a peer connection carrying the stream's local tracks.
// Missing directions get recvonly transceivers so the SDP always has valid
// m-lines with ICE credentials, even on a receive-only call.
func NewPeer(cfg Config, stream *media.Stream, events domain.PeerEvents) (*Peer, error) {
	me := &webrtc.MediaEngine{}
	if err := stream.ConfigureEngine(me); err != nil {
		return nil, fmt.Errorf("configure media engine: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
	)

	var servers []webrtc.ICEServer
	for _, u := range cfg.STUNURLs {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	log := cfg.Log.WithField("component", "rtc")
	p := &Peer{
		pc:       pc,
		events:   events,
		videoOut: cfg.VideoOut,
		log:      log,
		done:     make(chan struct{}),
	}

	hasAudio, hasVideo := false, false
	for _, t := range stream.Tracks() {
		if _, err := pc.AddTrack(t); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add local track: %w", err)
		}
		switch t.Kind() {
		case webrtc.RTPCodecTypeAudio:
			hasAudio = true
		case webrtc.RTPCodecTypeVideo:
			hasVideo = true
		}
	}
	if !hasVideo {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add video transceiver: %w", err)
		}
	}
	if !hasAudio {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add audio transceiver: %w", err)
		}
	}

	pc.OnTrack(p.handleTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.WithField("state", state.String()).Debug("connection state")
		dispatchConnectionState(state, events)
	})

	return p, nil
}

// dispatchConnectionState maps transport states to session events.
// Disconnected is not terminal: ICE consent may recover, so the call ends
// only on Closed, and only Failed surfaces as an error.
func dispatchConnectionState(state webrtc.PeerConnectionState, events domain.PeerEvents) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		events.OnConnected()
	case webrtc.PeerConnectionStateFailed:
		events.OnError(errors.New("peer transport failed"))
	case webrtc.PeerConnectionStateClosed:
		events.OnClosed()
	}
}

// CreateOffer produces the local offer, waits for ICE gathering to finish,
// and emits the complete description through OnLocalDescription.
func (p *Peer) CreateOffer(ctx context.Context) error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return p.setLocalAndEmit(ctx, offer)
}

// CreateAnswer applies the remote offer, produces the local answer, waits
// for ICE gathering to finish, and emits it through OnLocalDescription.
func (p *Peer) CreateAnswer(ctx context.Context, offer domain.SDPPayload) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	p.mu.Lock()
	p.remoteApplied = true
	p.mu.Unlock()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	return p.setLocalAndEmit(ctx, answer)
}

func (p *Peer) setLocalAndEmit(ctx context.Context, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-p.done:
		return errors.New("peer closed while gathering")
	case <-ctx.Done():
		return ctx.Err()
	}

	local := p.pc.LocalDescription()
	p.log.WithField("type", local.Type.String()).Debug("local description ready")
	p.events.OnLocalDescription(domain.SDPPayload{Type: local.Type.String(), SDP: local.SDP})
	return nil
}

// AcceptAnswer applies the remote answer. Subscription snapshots deliver
// the same answer more than once; after the first application the rest are
// no-ops so negotiation is never restarted.
func (p *Peer) AcceptAnswer(answer domain.SDPPayload) error {
	p.mu.Lock()
	if p.remoteApplied {
		p.mu.Unlock()
		return nil
	}
	p.remoteApplied = true
	p.mu.Unlock()

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	p.log.Debug("remote answer applied")
	return nil
}

// Close shuts down the peer connection. Idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	return p.pc.Close()
}

func (p *Peer) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	codec := track.Codec()
	p.log.WithFields(logrus.Fields{
		"kind":  track.Kind().String(),
		"codec": codec.MimeType,
	}).Info("remote track")

	kind := domain.TrackAudio
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		kind = domain.TrackVideo
	}
	p.events.OnRemoteTrack(domain.RemoteTrack{Kind: kind, ID: track.ID()})

	if kind == domain.TrackVideo {
		go p.keyframeLoop(uint32(track.SSRC()))
		go p.readVideo(track)
		return
	}
	go p.drain(track)
}

// keyframeLoop periodically asks the sender for a keyframe so the video
// sink can start decoding mid-stream.
func (p *Peer) keyframeLoop(ssrc uint32) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}})
			if err != nil {
				return
			}
		}
	}
}

func (p *Peer) readVideo(track *webrtc.TrackRemote) {
	if p.videoOut == nil {
		p.drain(track)
		return
	}

	mime := track.Codec().MimeType
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeH264):
		p.writeAnnexB(track)
	case strings.EqualFold(mime, webrtc.MimeTypeVP8), strings.EqualFold(mime, webrtc.MimeTypeVP9):
		p.writeIVF(track, mime)
	default:
		p.log.WithField("codec", mime).Warn("no sink for codec, draining")
		p.drain(track)
	}
}

// writeAnnexB converts RTP H264 payloads to an Annex-B byte stream.
func (p *Peer) writeAnnexB(track *webrtc.TrackRemote) {
	depack := NewH264Depacketizer()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := writeNALUs(p.videoOut, depack.Depacketize(pkt.SequenceNumber, pkt.Payload)); err != nil {
			p.log.WithError(err).Warn("video sink gone, dropping stream")
			p.drain(track)
			return
		}
	}
}

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// writeNALUs frames NAL units with Annex-B start codes. The first sink
// error stops the stream; a vanished consumer must end the read loop.
func writeNALUs(w io.Writer, nalus [][]byte) error {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if _, err := w.Write(annexBStartCode); err != nil {
			return err
		}
		if _, err := w.Write(nalu); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) writeIVF(track *webrtc.TrackRemote, mime string) {
	w, err := ivfwriter.NewWith(p.videoOut, ivfwriter.WithCodec(mime))
	if err != nil {
		p.log.WithError(err).Warn("ivf writer, draining instead")
		p.drain(track)
		return
	}
	defer w.Close()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := w.WriteRTP(pkt); err != nil {
			return
		}
	}
}

func (p *Peer) drain(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
