package media

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// countingWriter is a bind-time packet sink recording deliveries.
type countingWriter struct {
	rtpWrites int
	rawWrites int
}

func (w *countingWriter) WriteRTP(*rtp.Header, []byte) (int, error) {
	w.rtpWrites++
	return 0, nil
}

func (w *countingWriter) Write(b []byte) (int, error) {
	w.rawWrites++
	return len(b), nil
}

// bindContext carries just the write stream; the wrapped track under test
// touches nothing else.
type bindContext struct {
	webrtc.TrackLocalContext
	writer webrtc.TrackLocalWriter
}

func (c bindContext) WriteStream() webrtc.TrackLocalWriter { return c.writer }

// bindTrack records the context it was bound with so the test can drive
// the writer the peer connection would use.
type bindTrack struct {
	kind  webrtc.RTPCodecType
	bound webrtc.TrackLocalContext
}

func (t *bindTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	t.bound = ctx
	return webrtc.RTPCodecParameters{}, nil
}

func (t *bindTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (t *bindTrack) ID() string                            { return "track" }
func (t *bindTrack) RID() string                           { return "" }
func (t *bindTrack) StreamID() string                      { return "stream" }
func (t *bindTrack) Kind() webrtc.RTPCodecType             { return t.kind }
func (t *bindTrack) Close() error                          { return nil }

func bindStreamTrack(t *testing.T, s *Stream, inner *bindTrack, sink *countingWriter) webrtc.TrackLocalWriter {
	t.Helper()
	var wrapped LocalTrack
	for _, tr := range s.Tracks() {
		if tr.Kind() == inner.kind {
			wrapped = tr
		}
	}
	if wrapped == nil {
		t.Fatalf("no %v track on stream", inner.kind)
	}
	if _, err := wrapped.Bind(bindContext{writer: sink}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return inner.bound.WriteStream()
}

func TestToggleAudio_SuppressesOutboundPackets(t *testing.T) {
	inner := &bindTrack{kind: webrtc.RTPCodecTypeAudio}
	s := NewStream([]LocalTrack{inner}, false, nil)
	sink := &countingWriter{}
	w := bindStreamTrack(t, s, inner, sink)

	if _, err := w.WriteRTP(&rtp.Header{}, []byte{0x01}); err != nil {
		t.Fatalf("WriteRTP: %v", err)
	}
	if sink.rtpWrites != 1 {
		t.Fatalf("unmuted write not delivered, got %d", sink.rtpWrites)
	}

	if muted := s.ToggleAudio(); !muted {
		t.Fatal("toggle should mute")
	}
	if _, err := w.WriteRTP(&rtp.Header{}, []byte{0x02}); err != nil {
		t.Fatalf("muted WriteRTP must still report success: %v", err)
	}
	if _, err := w.Write([]byte{0x03}); err != nil {
		t.Fatalf("muted Write must still report success: %v", err)
	}
	if sink.rtpWrites != 1 || sink.rawWrites != 0 {
		t.Errorf("muted packets reached the transport: rtp=%d raw=%d", sink.rtpWrites, sink.rawWrites)
	}

	s.ToggleAudio()
	w.WriteRTP(&rtp.Header{}, []byte{0x04})
	if sink.rtpWrites != 2 {
		t.Errorf("unmute did not restore delivery, got %d", sink.rtpWrites)
	}
}

func TestToggleVideo_GateIsIndependentOfAudio(t *testing.T) {
	audio := &bindTrack{kind: webrtc.RTPCodecTypeAudio}
	video := &bindTrack{kind: webrtc.RTPCodecTypeVideo}
	s := NewStream([]LocalTrack{audio, video}, true, nil)

	audioSink := &countingWriter{}
	videoSink := &countingWriter{}
	aw := bindStreamTrack(t, s, audio, audioSink)
	vw := bindStreamTrack(t, s, video, videoSink)

	if off := s.ToggleVideo(); !off {
		t.Fatal("toggle should disable video")
	}
	vw.WriteRTP(&rtp.Header{}, []byte{0x01})
	aw.WriteRTP(&rtp.Header{}, []byte{0x01})

	if videoSink.rtpWrites != 0 {
		t.Error("video packets flowed while toggled off")
	}
	if audioSink.rtpWrites != 1 {
		t.Error("audio suppressed by the video toggle")
	}
}

func TestAudioOnlyStream_VideoGateStartsClosed(t *testing.T) {
	video := &bindTrack{kind: webrtc.RTPCodecTypeVideo}
	s := NewStream([]LocalTrack{video}, false, nil)
	sink := &countingWriter{}
	w := bindStreamTrack(t, s, video, sink)

	w.WriteRTP(&rtp.Header{}, []byte{0x01})
	if sink.rtpWrites != 0 {
		t.Error("video flowed on a stream that reports no video")
	}
}
