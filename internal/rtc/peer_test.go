package rtc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
)

// recordingEvents counts the session callbacks the engine fires.
type recordingEvents struct {
	connected int
	closed    int
	errs      []error
}

func (e *recordingEvents) OnLocalDescription(domain.SDPPayload) {}
func (e *recordingEvents) OnRemoteTrack(domain.RemoteTrack)     {}
func (e *recordingEvents) OnConnected()                         { e.connected++ }
func (e *recordingEvents) OnClosed()                            { e.closed++ }
func (e *recordingEvents) OnError(err error)                    { e.errs = append(e.errs, err) }

func TestDispatchConnectionState(t *testing.T) {
	cases := []struct {
		state     webrtc.PeerConnectionState
		connected int
		closed    int
		errs      int
	}{
		{webrtc.PeerConnectionStateConnected, 1, 0, 0},
		{webrtc.PeerConnectionStateFailed, 0, 0, 1},
		{webrtc.PeerConnectionStateClosed, 0, 1, 0},
		// Disconnected can recover; it must not hang up the call.
		{webrtc.PeerConnectionStateDisconnected, 0, 0, 0},
		{webrtc.PeerConnectionStateConnecting, 0, 0, 0},
	}
	for _, c := range cases {
		ev := &recordingEvents{}
		dispatchConnectionState(c.state, ev)
		if ev.connected != c.connected || ev.closed != c.closed || len(ev.errs) != c.errs {
			t.Errorf("%v: connected=%d closed=%d errs=%d, want %d/%d/%d",
				c.state, ev.connected, ev.closed, len(ev.errs), c.connected, c.closed, c.errs)
		}
	}
}

func TestWriteNALUs_FramesWithStartCodes(t *testing.T) {
	var buf bytes.Buffer
	nalus := [][]byte{{0x65, 0x01}, nil, {0x41, 0x02}}

	if err := writeNALUs(&buf, nalus); err != nil {
		t.Fatalf("writeNALUs: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x01, 0x00, 0x00, 0x00, 0x01, 0x41, 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("stream = %v, want %v", buf.Bytes(), want)
	}
}

// brokenWriter fails after a fixed number of writes, like a closed pipe.
type brokenWriter struct {
	remaining int
	writes    int
}

func (w *brokenWriter) Write(b []byte) (int, error) {
	w.writes++
	if w.writes > w.remaining {
		return 0, errors.New("broken pipe")
	}
	return len(b), nil
}

func TestWriteNALUs_StopsOnSinkError(t *testing.T) {
	w := &brokenWriter{remaining: 1}
	nalus := [][]byte{{0x65, 0x01}, {0x41, 0x02}, {0x41, 0x03}}

	if err := writeNALUs(w, nalus); err == nil {
		t.Fatal("expected the sink error to propagate")
	}
	// Start code delivered, NALU write failed: no further attempts.
	if w.writes != 2 {
		t.Errorf("writes = %d, want 2", w.writes)
	}
}
