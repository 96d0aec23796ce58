package media

import (
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// gate is a shared on/off switch for the outbound packet flow of all
// tracks of one kind.
type gate struct {
	open atomic.Bool
}

func (g *gate) set(open bool) { g.open.Store(open) }

// gatedTrack wraps a local track so that a closed gate suppresses its
// outbound packets at the bind writer. The remote side observes silence
// or a frozen frame through the media transport itself; nothing is
// renegotiated or signaled through the store.
type gatedTrack struct {
	LocalTrack
	gate *gate
}

func (t *gatedTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return t.LocalTrack.Bind(gatedContext{
		TrackLocalContext: ctx,
		writer:            &gatedWriter{gate: t.gate, next: ctx.WriteStream()},
	})
}

// gatedContext substitutes the write stream the wrapped track binds to.
type gatedContext struct {
	webrtc.TrackLocalContext
	writer webrtc.TrackLocalWriter
}

func (c gatedContext) WriteStream() webrtc.TrackLocalWriter { return c.writer }

// gatedWriter discards packets while its gate is closed. Discarded writes
// report success so the capture pipeline keeps encoding and the track can
// resume instantly when unmuted.
type gatedWriter struct {
	gate *gate
	next webrtc.TrackLocalWriter
}

func (w *gatedWriter) WriteRTP(header *rtp.Header, payload []byte) (int, error) {
	if !w.gate.open.Load() {
		return len(payload), nil
	}
	return w.next.WriteRTP(header, payload)
}

func (w *gatedWriter) Write(b []byte) (int, error) {
	if !w.gate.open.Load() {
		return len(b), nil
	}
	return w.next.Write(b)
}
