//go:build !linux || !cgo

package media

import "context"

// Camera/mic capture requires platform drivers (V4L2/malgo on Linux). On
// other platforms the call proceeds receive-only.
func openDevices(_ context.Context, _, _ bool) (*Stream, error) {
	return nil, ErrCaptureUnsupported
}
