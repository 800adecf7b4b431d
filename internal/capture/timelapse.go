package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/models"
)

// RunRecorder persists timelapse runs and individual frame captures.
// Implemented by storage.Store. Persistence is best effort: a storage
// failure never stops an in-flight sequence.
type RunRecorder interface {
	CreateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error
	UpdateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error
	RecordCapture(ctx context.Context, record *models.CaptureRecord) error
}

// EventSink receives timelapse lifecycle notifications.
// Implemented by integration.Publisher.
type EventSink interface {
	TimelapseStarted(run *models.TimelapseRun) error
	TimelapseProgress(run *models.TimelapseRun) error
	TimelapseFinished(run *models.TimelapseRun) error
}

// TimelapseStatus is the externally visible state of the timelapse loop.
// It is a snapshot; the loop mutates its own copy under the service mutex.
type TimelapseStatus struct {
	Active  bool   `json:"active"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	Total   int    `json:"total"`
	Folder  string `json:"folder"`
}

// TimelapseService runs timed capture sequences into per-run folders
// under a base directory. At most one sequence runs at a time.
type TimelapseService struct {
	capturer ImageCapturer
	recorder RunRecorder
	events   EventSink
	baseDir  string
	clock    clockwork.Clock

	mu            sync.Mutex
	status        TimelapseStatus
	cancel        context.CancelFunc
	done          chan struct{}
	stopRequested bool
	runID         uuid.UUID
}

// TimelapseOption configures a TimelapseService
type TimelapseOption func(*TimelapseService)

// WithTimelapseClock overrides the wall clock, for tests
func WithTimelapseClock(clock clockwork.Clock) TimelapseOption {
	return func(s *TimelapseService) { s.clock = clock }
}

// NewTimelapseService creates a timelapse service storing sequences
// under baseDir
func NewTimelapseService(capturer ImageCapturer, recorder RunRecorder, events EventSink, baseDir string, opts ...TimelapseOption) *TimelapseService {
	s := &TimelapseService{
		capturer: capturer,
		recorder: recorder,
		events:   events,
		baseDir:  baseDir,
		clock:    clockwork.NewRealClock(),
		status:   TimelapseStatus{Message: "Idle"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loopAlive reports whether a run goroutine is still executing. The done
// channel outlives the status flags, so this is the ground truth used to
// distinguish "stopping" from "crashed".
func (s *TimelapseService) loopAlive() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Start begins a sequence of count images spaced interval seconds apart,
// measured from the start of each capture. Returns ErrAlreadyRunning when
// a sequence goroutine is still alive, even if a stop was already
// requested for it.
func (s *TimelapseService) Start(interval, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopAlive() {
		log.Warn().Msg("timelapse start requested, but a sequence is already running")
		return ErrAlreadyRunning
	}
	if interval <= 0 {
		return fmt.Errorf("invalid interval %d, must be positive", interval)
	}
	if count <= 0 {
		return fmt.Errorf("invalid count %d, must be positive", count)
	}

	folder := s.clock.Now().Format("20060102_150405") + fmt.Sprintf("_timelapse_%dx%ds", count, interval)
	dir := filepath.Join(s.baseDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.status = TimelapseStatus{
			Active:  false,
			Message: fmt.Sprintf("Error: cannot create directory %s", folder),
			Total:   count,
			Folder:  folder,
		}
		return fmt.Errorf("failed to create timelapse directory %s: %w", dir, err)
	}

	run := &models.TimelapseRun{
		ID:        uuid.New(),
		Folder:    folder,
		Total:     count,
		Interval:  interval,
		State:     models.RunStateRunning,
		StartedAt: s.clock.Now(),
	}
	if s.recorder != nil {
		if err := s.recorder.CreateTimelapseRun(context.Background(), run); err != nil {
			log.Warn().Err(err).Str("folder", folder).Msg("failed to record timelapse run")
		}
	}
	if s.events != nil {
		if err := s.events.TimelapseStarted(run); err != nil {
			log.Warn().Err(err).Msg("failed to publish timelapse started event")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.status = TimelapseStatus{
		Active:  true,
		Message: "Starting...",
		Count:   0,
		Total:   count,
		Folder:  folder,
	}
	s.cancel = cancel
	s.done = done
	s.stopRequested = false
	s.runID = run.ID

	log.Info().Str("folder", folder).Int("count", count).Int("interval", interval).Msg("timelapse starting")
	go s.run(ctx, run, dir, interval, count, done)

	return nil
}

// run executes the capture sequence. The interval is anchored at the
// start of each capture, so capture latency eats into the wait rather
// than stretching the cycle.
func (s *TimelapseService) run(ctx context.Context, run *models.TimelapseRun, dir string, interval, count int, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("timelapse loop terminated by panic")
			s.finish(run, models.RunStateError, "Error: timelapse loop terminated unexpectedly.", s.captured())
		}
	}()

	for i := 1; i <= count; i++ {
		if ctx.Err() != nil {
			s.finish(run, models.RunStateCancelled, fmt.Sprintf("Cancelled after %d images.", i-1), i-1)
			return
		}

		s.setMessage(fmt.Sprintf("Capturing image %d of %d...", i, count))
		cycleStart := s.clock.Now()

		// Cancellation is observed at iteration start and during waits. An
		// in-flight capture always runs to completion, so the capture call
		// is shielded from the loop's cancel.
		savePath := filepath.Join(dir, fmt.Sprintf("%04d.jpg", i))
		if _, err := s.capturer.CaptureImage(context.WithoutCancel(ctx), savePath); err != nil {
			if ctx.Err() != nil {
				s.finish(run, models.RunStateCancelled, fmt.Sprintf("Cancelled after %d images.", i-1), i-1)
				return
			}
			log.Error().Err(err).Int("image", i).Msg("timelapse capture failed")
			s.finish(run, models.RunStateError, fmt.Sprintf("Error capturing image %d. Stopping.", i), i-1)
			return
		}

		s.setCount(i)
		if s.recorder != nil {
			record := &models.CaptureRecord{
				ID:         uuid.New(),
				FilePath:   savePath,
				Downloaded: true,
				Source:     models.CaptureSourceTimelapse,
				RunID:      &run.ID,
				CreatedAt:  s.clock.Now(),
			}
			if err := s.recorder.RecordCapture(context.Background(), record); err != nil {
				log.Warn().Err(err).Msg("failed to record timelapse frame")
			}
		}
		if s.events != nil {
			run.Captured = i
			if err := s.events.TimelapseProgress(run); err != nil {
				log.Warn().Err(err).Msg("failed to publish timelapse progress event")
			}
		}

		if i < count {
			elapsed := s.clock.Since(cycleStart)
			wait := time.Duration(interval)*time.Second - elapsed
			if wait < 0 {
				wait = 0
			}
			s.setMessage(fmt.Sprintf("Image %d/%d captured. Waiting %.1fs...", i, count, wait.Seconds()))
			if !sleep(ctx, s.clock, wait) {
				s.finish(run, models.RunStateCancelled, fmt.Sprintf("Cancelled after %d images.", i), i)
				return
			}
		}
	}

	s.finish(run, models.RunStateCompleted, fmt.Sprintf("Completed %d images in folder %s.", count, run.Folder), count)
}

// Stop requests cancellation of the active sequence without waiting for
// it to wind down. The loop observes the cancellation at its next
// checkpoint and records its own final message.
func (s *TimelapseService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loopAlive() {
		log.Warn().Msg("timelapse stop requested, but no sequence is running")
		return ErrNotRunning
	}

	s.stopRequested = true
	s.cancel()
	s.status.Active = false
	s.status.Message = "Stopping..."

	log.Info().Str("folder", s.status.Folder).Msg("timelapse stop requested")
	return nil
}

// Status returns a snapshot of the loop state. A loop that died without
// updating its status, for example by panicking through the recovery
// path, is reconciled to an error state here.
func (s *TimelapseService) Status() TimelapseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Active && !s.loopAlive() && !s.stopRequested {
		s.status.Active = false
		s.status.Message = "Error: timelapse loop terminated unexpectedly."
		log.Error().Str("folder", s.status.Folder).Msg("timelapse loop died without reporting a final state")
	}

	return s.status
}

// Active reports whether a sequence goroutine is currently alive
func (s *TimelapseService) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopAlive()
}

// ListSequences returns the folder names under the base directory,
// newest first. Folder names sort chronologically by construction.
func (s *TimelapseService) ListSequences() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list timelapse directory: %w", err)
	}

	folders := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(folders)))
	return folders, nil
}

// SequenceDir resolves a folder name to its path under the base
// directory, rejecting names that escape it.
func (s *TimelapseService) SequenceDir(folder string) (string, error) {
	if folder == "" || folder != filepath.Base(folder) {
		return "", fmt.Errorf("invalid sequence folder %q", folder)
	}
	dir := filepath.Join(s.baseDir, folder)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("sequence folder %q not found: %w", folder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("sequence folder %q not found", folder)
	}
	return dir, nil
}

func (s *TimelapseService) setMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Active {
		s.status.Message = msg
	}
}

func (s *TimelapseService) setCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Count = count
}

func (s *TimelapseService) captured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Count
}

// finish records the terminal state of a run in the status, the store
// and the event stream.
func (s *TimelapseService) finish(run *models.TimelapseRun, state, message string, captured int) {
	s.mu.Lock()
	s.status.Active = false
	s.status.Message = message
	s.status.Count = captured
	s.mu.Unlock()

	log.Info().Str("folder", run.Folder).Str("state", state).Int("captured", captured).Msg(message)

	now := s.clock.Now()
	run.State = state
	run.Message = message
	run.Captured = captured
	run.FinishedAt = &now

	if s.recorder != nil {
		if err := s.recorder.UpdateTimelapseRun(context.Background(), run); err != nil {
			log.Warn().Err(err).Str("folder", run.Folder).Msg("failed to update timelapse run")
		}
	}
	if s.events != nil {
		if err := s.events.TimelapseFinished(run); err != nil {
			log.Warn().Err(err).Msg("failed to publish timelapse finished event")
		}
	}
}
