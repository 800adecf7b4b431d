package capture

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/camera"
)

// PreviewService runs the live preview loop: it repeatedly asks the session
// for a still frame at a target rate and overwrites a fixed artifact path
// in place. Consumers always read the same path and must treat it as
// "latest available frame".
type PreviewService struct {
	capturer     FrameCapturer
	path         string
	clock        clockwork.Clock
	defaultRate  float64
	failureRetry time.Duration
	stopTimeout  time.Duration

	mu      sync.Mutex
	running bool
	rate    float64
	cancel  context.CancelFunc
	done    chan struct{}
}

// PreviewOption configures a PreviewService
type PreviewOption func(*PreviewService)

// WithPreviewClock overrides the wall clock, for tests
func WithPreviewClock(clock clockwork.Clock) PreviewOption {
	return func(s *PreviewService) { s.clock = clock }
}

// NewPreviewService creates a preview service writing frames to path
func NewPreviewService(capturer FrameCapturer, path string, defaultRate float64, failureRetry, stopTimeout time.Duration, opts ...PreviewOption) *PreviewService {
	s := &PreviewService{
		capturer:     capturer,
		path:         path,
		clock:        clockwork.NewRealClock(),
		defaultRate:  defaultRate,
		failureRetry: failureRetry,
		stopTimeout:  stopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the fixed artifact path
func (s *PreviewService) Path() string {
	return s.path
}

// Running reports whether the loop is active
func (s *PreviewService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Rate returns the active (or default) capture rate
func (s *PreviewService) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.rate
	}
	return s.defaultRate
}

// Start launches the preview loop and returns immediately; the caller does
// not wait for the first frame. A non-positive rate is invalid but
// non-fatal: the default rate is kept. Returns ErrAlreadyRunning when a
// loop is active.
func (s *PreviewService) Start(rate float64, opts camera.PreviewOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Warn().Msg("preview start requested, but preview is already active")
		return ErrAlreadyRunning
	}

	if rate <= 0 {
		log.Warn().Float64("rate", rate).Float64("default", s.defaultRate).Msg("invalid preview rate, using default")
		rate = s.defaultRate
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.running = true
	s.rate = rate
	s.cancel = cancel
	s.done = done

	log.Info().Float64("rate", rate).Int("rotation", opts.Rotation).Bool("flip", opts.Flip).Msg("preview loop starting")
	go s.run(ctx, rate, opts, done)

	return nil
}

// run is the loop body. On capture failure it waits and retries; on
// success it sleeps the remainder of the frame period so the long-run
// average rate stays close to the target regardless of capture latency.
func (s *PreviewService) run(ctx context.Context, rate float64, opts camera.PreviewOptions, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("preview loop terminated by panic")
		}
	}()

	period := time.Duration(float64(time.Second) / rate)

	for ctx.Err() == nil {
		start := s.clock.Now()

		if err := s.capturer.CapturePreviewFrame(ctx, s.path, opts); err != nil {
			log.Warn().Err(err).Msg("preview capture failed in loop")
			if !sleep(ctx, s.clock, s.failureRetry) {
				break
			}
			continue
		}

		elapsed := s.clock.Since(start)
		if !sleep(ctx, s.clock, period-elapsed) {
			break
		}
	}

	log.Info().Msg("preview loop finished")
}

// Stop signals the loop and waits up to the stop timeout for it to exit.
// A loop that does not exit in time is abandoned; it holds no resources
// the caller needs back immediately. Returns ErrNotRunning when idle.
func (s *PreviewService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		log.Warn().Msg("preview stop requested, but preview was not active")
		return ErrNotRunning
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-s.clock.After(s.stopTimeout):
		log.Warn().Dur("timeout", s.stopTimeout).Msg("preview loop did not stop gracefully, abandoning")
	}

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	log.Info().Msg("preview stopped")
	return nil
}
