package media

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestCapturer(open openFunc) *Capturer {
	return &Capturer{open: open, log: testLogger().WithField("component", "media")}
}

func TestCapture_VideoAndAudio(t *testing.T) {
	c := newTestCapturer(func(_ context.Context, video, audio bool) (*Stream, error) {
		if !video || !audio {
			t.Errorf("expected video+audio request, got video=%v audio=%v", video, audio)
		}
		return NewStream(nil, true, nil), nil
	})

	s, err := c.Capture(context.Background(), true)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !s.HasVideo() {
		t.Error("expected HasVideo")
	}
}

func TestCapture_DeviceUnreadableFallsBackToAudioOnly(t *testing.T) {
	c := newTestCapturer(func(_ context.Context, video, _ bool) (*Stream, error) {
		if video {
			return nil, &DeviceError{Err: errors.New("device busy")}
		}
		return NewStream(nil, false, nil), nil
	})

	s, err := c.Capture(context.Background(), true)
	if err != nil {
		t.Fatalf("expected audio-only fallback, got %v", err)
	}
	if s.HasVideo() {
		t.Error("fallback stream must not report video")
	}
}

func TestCapture_PermissionFailureIsAccessDenied(t *testing.T) {
	opens := 0
	c := newTestCapturer(func(_ context.Context, _, _ bool) (*Stream, error) {
		opens++
		return nil, errors.New("permission denied")
	})

	_, err := c.Capture(context.Background(), true)
	if domain.KindOf(err) != domain.ErrKindMediaAccessDenied {
		t.Fatalf("expected MediaAccessDenied, got %v", err)
	}
	if opens != 1 {
		t.Errorf("a non-transient failure must not retry, got %d attempts", opens)
	}
}

func TestCapture_FallbackFailureIsAccessDenied(t *testing.T) {
	c := newTestCapturer(func(_ context.Context, video, _ bool) (*Stream, error) {
		if video {
			return nil, &DeviceError{Err: errors.New("unreadable")}
		}
		return nil, errors.New("no audio device")
	})

	_, err := c.Capture(context.Background(), true)
	if domain.KindOf(err) != domain.ErrKindMediaAccessDenied {
		t.Fatalf("expected MediaAccessDenied when fallback also fails, got %v", err)
	}
}

func TestCapture_UnsupportedPlatformIsReceiveOnly(t *testing.T) {
	c := newTestCapturer(func(_ context.Context, _, _ bool) (*Stream, error) {
		return nil, ErrCaptureUnsupported
	})

	s, err := c.Capture(context.Background(), true)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if s.HasVideo() || len(s.Tracks()) != 0 {
		t.Error("expected an empty receive-only stream")
	}
}

func TestStream_Toggles(t *testing.T) {
	s := NewStream(nil, true, nil)

	if s.AudioMuted() {
		t.Fatal("audio should start unmuted")
	}
	if muted := s.ToggleAudio(); !muted {
		t.Error("first toggle should mute")
	}
	if muted := s.ToggleAudio(); muted {
		t.Error("second toggle should unmute")
	}

	if off := s.ToggleVideo(); !off {
		t.Error("first toggle should disable video")
	}
	if !s.VideoOff() {
		t.Error("VideoOff should report disabled")
	}
}

type closeTrack struct {
	LocalTrack
	closed int
}

func (c *closeTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeAudio }

func (c *closeTrack) Close() error {
	c.closed++
	return nil
}

func TestStream_StopIdempotent(t *testing.T) {
	tr := &closeTrack{}
	s := NewStream([]LocalTrack{tr}, false, nil)

	s.Stop()
	s.Stop()

	if tr.closed != 1 {
		t.Errorf("expected tracks closed exactly once, got %d", tr.closed)
	}
	if !s.Stopped() {
		t.Error("Stopped should report true")
	}
}
