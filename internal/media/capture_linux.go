//go:build linux && cgo

package media

import (
	"context"
	"errors"
	"os"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// Browser peers often prefer H264; register it alongside the VP8 encoder so
// the remote side can pick either for its sending direction.
var h264Receive = webrtc.RTPCodecParameters{
	RTPCodecCapability: webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		ClockRate:   90000,
		SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=0;profile-level-id=42e01f",
	},
	PayloadType: 102,
}

// openDevices captures camera/mic via V4L2 and malgo.
func openDevices(_ context.Context, video, audio bool) (*Stream, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	constraints := mediadevices.MediaStreamConstraints{Codec: selector}
	if video {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// Raw frame formats only: some cameras expose an MJPEG node
			// that produces malformed frames and poisons the VP8 encoder.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}
	if audio {
		constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	var tracks []LocalTrack
	hasVideo := false
	for _, t := range ms.GetTracks() {
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			hasVideo = true
		}
		tracks = append(tracks, t)
	}

	engine := func(me *webrtc.MediaEngine) error {
		selector.Populate(me)
		return me.RegisterCodec(h264Receive, webrtc.RTPCodecTypeVideo)
	}
	return NewStream(tracks, hasVideo, engine), nil
}

// classifyOpenError separates permission refusals (fatal) from transient
// device failures (fall back to audio-only).
func classifyOpenError(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return err
	}
	return &DeviceError{Err: err}
}
