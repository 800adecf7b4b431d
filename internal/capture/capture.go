// Package capture implements the two background capture loops: live
// preview streaming and timelapse sequencing. Both are cooperatively
// cancellable goroutines that acquire the camera session's gate once per
// operation and never hold it across their sleeps.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tethercam/camera-server/internal/camera"
)

// Loop lifecycle errors
var (
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

// FrameCapturer captures preview frames; implemented by camera.Session
type FrameCapturer interface {
	CapturePreviewFrame(ctx context.Context, targetPath string, opts camera.PreviewOptions) error
}

// ImageCapturer captures full-resolution images; implemented by camera.Session
type ImageCapturer interface {
	CaptureImage(ctx context.Context, savePath string) (string, error)
}

// sleep waits for d or until ctx is cancelled. Returns false when the wait
// was interrupted by cancellation.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
