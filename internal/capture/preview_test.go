package capture

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethercam/camera-server/internal/camera"
)

// fakeFrameCapturer counts preview calls and can fail or block
type fakeFrameCapturer struct {
	mu      sync.Mutex
	count   int
	err     error
	blockCh chan struct{}
}

func (f *fakeFrameCapturer) CapturePreviewFrame(ctx context.Context, targetPath string, opts camera.PreviewOptions) error {
	if f.blockCh != nil {
		<-f.blockCh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.err
}

func (f *fakeFrameCapturer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeFrameCapturer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newPreview(t *testing.T, cap *fakeFrameCapturer, clock clockwork.Clock) *PreviewService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preview.jpg")
	return NewPreviewService(cap, path, 1.0, 2*time.Second, 5*time.Second, WithPreviewClock(clock))
}

func TestPreviewCapturesAtRate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cap := &fakeFrameCapturer{}
	svc := newPreview(t, cap, clock)

	require.NoError(t, svc.Start(2.0, camera.PreviewOptions{}))
	assert.True(t, svc.Running())
	assert.Equal(t, 2.0, svc.Rate())

	// First frame is captured immediately, then the loop waits out the
	// remainder of the 500ms frame period.
	clock.BlockUntil(1)
	assert.Equal(t, 1, cap.calls())

	clock.Advance(500 * time.Millisecond)
	clock.BlockUntil(1)
	assert.Equal(t, 2, cap.calls())

	clock.Advance(500 * time.Millisecond)
	clock.BlockUntil(1)
	assert.Equal(t, 3, cap.calls())

	require.NoError(t, svc.Stop())
	assert.False(t, svc.Running())
}

func TestPreviewRejectsDoubleStart(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newPreview(t, &fakeFrameCapturer{}, clock)

	require.NoError(t, svc.Start(1.0, camera.PreviewOptions{}))
	assert.ErrorIs(t, svc.Start(1.0, camera.PreviewOptions{}), ErrAlreadyRunning)

	require.NoError(t, svc.Stop())
}

func TestPreviewStopWhenIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newPreview(t, &fakeFrameCapturer{}, clock)

	assert.ErrorIs(t, svc.Stop(), ErrNotRunning)
}

func TestPreviewInvalidRateFallsBack(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newPreview(t, &fakeFrameCapturer{}, clock)

	require.NoError(t, svc.Start(0, camera.PreviewOptions{}))
	assert.Equal(t, 1.0, svc.Rate(), "non-positive rate keeps the default")

	require.NoError(t, svc.Stop())
}

func TestPreviewRetriesAfterFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cap := &fakeFrameCapturer{err: assert.AnError}
	svc := newPreview(t, cap, clock)

	require.NoError(t, svc.Start(1.0, camera.PreviewOptions{}))

	// The failed capture is followed by the retry delay, not the frame
	// period
	clock.BlockUntil(1)
	assert.Equal(t, 1, cap.calls())

	cap.setErr(nil)
	clock.Advance(2 * time.Second)
	clock.BlockUntil(1)
	assert.Equal(t, 2, cap.calls())

	require.NoError(t, svc.Stop())
}

func TestPreviewStopAbandonsStuckLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cap := &fakeFrameCapturer{blockCh: make(chan struct{})}
	svc := newPreview(t, cap, clock)

	require.NoError(t, svc.Start(1.0, camera.PreviewOptions{}))

	stopped := make(chan error, 1)
	go func() {
		stopped <- svc.Stop()
	}()

	// The capturer never returns, so Stop can only give up after its
	// bounded wait
	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the bounded wait")
	}
	assert.False(t, svc.Running())

	close(cap.blockCh)
}
