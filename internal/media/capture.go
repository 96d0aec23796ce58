package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
)

// ErrCaptureUnsupported is returned by the platform opener where no device
// drivers exist. The call proceeds receive-only.
var ErrCaptureUnsupported = errors.New("media capture not supported on this platform")

// DeviceError marks a transient device-level failure (busy, unreadable,
// aborted, absent). It triggers the audio-only fallback; every other
// acquisition failure is treated as access denied.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("media device: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// openFunc acquires devices. Platform files provide the real one.
type openFunc func(ctx context.Context, video, audio bool) (*Stream, error)

// Capturer acquires local media with the fallback policy:
// video+audio first, then audio-only on a transient device failure.
// No timeout is imposed here; a caller that wants one applies it via ctx.
type Capturer struct {
	open openFunc
	log  *logrus.Entry
}

// NewCapturer returns the platform capturer.
func NewCapturer(log *logrus.Logger) *Capturer {
	return &Capturer{
		open: openDevices,
		log:  log.WithField("component", "media"),
	}
}

// Capture acquires local media for a call. On success the returned stream
// is owned by the caller and must be stopped on every exit path.
func (c *Capturer) Capture(ctx context.Context, wantVideo bool) (*Stream, error) {
	if wantVideo {
		s, err := c.open(ctx, true, true)
		if err == nil {
			c.log.Debug("captured video+audio")
			return s, nil
		}
		if errors.Is(err, ErrCaptureUnsupported) {
			c.log.Warn("no capture support, proceeding receive-only")
			return NewStream(nil, false, nil), nil
		}
		var de *DeviceError
		if !errors.As(err, &de) {
			return nil, &domain.CallError{Kind: domain.ErrKindMediaAccessDenied, Err: err}
		}
		c.log.WithError(err).Warn("video capture failed, retrying audio-only")
	}

	s, err := c.open(ctx, false, true)
	if err == nil {
		c.log.Debug("captured audio-only")
		return s, nil
	}
	if errors.Is(err, ErrCaptureUnsupported) {
		c.log.Warn("no capture support, proceeding receive-only")
		return NewStream(nil, false, nil), nil
	}
	// The audio-only fallback also failed: the whole attempt is denied.
	return nil, &domain.CallError{Kind: domain.ErrKindMediaAccessDenied, Err: err}
}
