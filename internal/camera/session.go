package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Status represents basic camera status information
type Status struct {
	Connected bool   `json:"connected"`
	Model     string `json:"model"`
	Message   string `json:"message"`
}

// Session owns the single physical camera connection. All operations are
// serialized by one exclusive lock: the underlying device handle tolerates
// no concurrent use whatsoever, not even a status query racing a capture.
// The connection is established lazily on first use and torn down after
// every full-resolution capture and on any I/O-class error.
type Session struct {
	mu     sync.Mutex
	driver Driver
	conn   Conn
	model  string
}

// NewSession creates a disconnected session for the given driver
func NewSession(driver Driver) *Session {
	return &Session{driver: driver}
}

// Connect establishes the device connection, replacing any existing handle
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// connectLocked opens a new connection. Caller holds the gate.
func (s *Session) connectLocked(ctx context.Context) error {
	if s.conn != nil {
		log.Warn().Msg("camera already connected, releasing first")
		s.teardownLocked(ctx)
	}

	conn, err := s.driver.Open(ctx)
	if err != nil {
		switch codeOf(err) {
		case CodeModelNotFound:
			log.Error().Msg("camera not found, is it connected, powered on and in PC remote USB mode?")
		case CodeBusy:
			log.Error().Msg("camera is busy, another process might be using it")
		default:
			log.Error().Err(err).Msg("camera initialization failed")
		}
		return &ConnectionError{Reason: err.Error()}
	}

	s.conn = conn
	s.model = "unknown"

	// Best-effort model name from the summary text; failure is non-fatal
	if text, err := conn.Summary(ctx); err == nil {
		if model, ok := parseModel(text); ok {
			s.model = model
		}
	}

	log.Info().Str("model", s.model).Msg("camera connected")
	return nil
}

// ensureConnectedLocked connects lazily. Caller holds the gate.
func (s *Session) ensureConnectedLocked(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	log.Warn().Msg("camera not connected, attempting to initialize")
	return s.connectLocked(ctx)
}

// teardownLocked releases the connection handle. Caller holds the gate.
// The handle is dropped even if the close itself fails, so the next
// operation reconnects from scratch.
func (s *Session) teardownLocked(ctx context.Context) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(ctx); err != nil {
		log.Error().Err(err).Msg("error releasing camera")
	}
	s.conn = nil
	log.Info().Msg("camera released")
}

// Status reports connection state and model. A summary failure on an
// existing handle is treated as a connection loss: the handle is torn down
// and disconnected status returned, so stale connections self-heal here.
func (s *Session) Status(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return Status{Connected: false, Model: "N/A", Message: "Connection failed: " + err.Error()}
	}

	text, err := s.conn.Summary(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error getting camera summary")
		s.teardownLocked(ctx)
		return Status{Connected: false, Model: "N/A", Message: "Error communicating: " + err.Error()}
	}

	if model, ok := parseModel(text); ok {
		s.model = model
	}
	return Status{Connected: true, Model: s.model, Message: "Ready"}
}

// CapturePreviewFrame captures one still frame and writes it atomically to
// targetPath. An empty payload is a transient failure: the partial file is
// removed but the handle is kept. I/O-class errors tear the handle down.
func (s *Session) CapturePreviewFrame(ctx context.Context, targetPath string, opts PreviewOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return err
	}

	data, err := s.conn.CapturePreview(ctx, opts)
	if err != nil {
		log.Warn().Err(err).Msg("could not capture preview")
		if shouldTeardown(err) {
			log.Warn().Msg("potential connection issue during preview, releasing camera handle")
			s.teardownLocked(ctx)
		}
		removeIfExists(targetPath)
		return fmt.Errorf("capture preview: %w", err)
	}

	if len(data) == 0 {
		log.Warn().Msg("captured preview data is empty")
		removeIfExists(targetPath)
		return ErrEmptyFrame
	}

	if err := writeFileAtomic(targetPath, data); err != nil {
		removeIfExists(targetPath)
		return fmt.Errorf("write preview frame: %w", err)
	}
	return nil
}

// CaptureImage performs a full-resolution capture. The image is written to
// the camera's own storage first, downloaded to savePath, and best-effort
// deleted from the camera. An empty savePath leaves the image on the camera
// and returns an empty path.
//
// The connection is torn down unconditionally afterwards, success or not:
// the reference hardware becomes unreliable for a followup capture without
// a fresh reconnect, so every full capture pays a reconnect cost on the
// next operation instead of risking a silent stall.
func (s *Session) CaptureImage(ctx context.Context, savePath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return "", err
	}
	defer s.teardownLocked(ctx)

	log.Info().Msg("capturing image")
	ref, err := s.conn.TriggerCapture(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not capture image")
		return "", fmt.Errorf("trigger capture: %w", err)
	}
	log.Info().Str("folder", ref.Folder).Str("name", ref.Name).Msg("image captured on camera")

	if savePath == "" {
		return "", nil
	}

	data, err := s.conn.DownloadFile(ctx, ref)
	if err != nil {
		log.Error().Err(err).Str("name", ref.Name).Msg("failed to download image")
		return "", fmt.Errorf("download %s: %w", ref.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", fmt.Errorf("create capture directory: %w", err)
	}
	if err := writeFileAtomic(savePath, data); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	log.Info().Str("path", savePath).Msg("image saved")

	if err := s.conn.DeleteFile(ctx, ref); err != nil {
		log.Warn().Err(err).Str("name", ref.Name).Msg("could not delete file from camera")
	}

	return savePath, nil
}

// Close tears down the connection. Called on process exit.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(ctx)
}

// Connected reports whether a live handle exists, without connecting
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// IsConnectionError reports whether err means the device is unavailable
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// parseModel extracts the model name from the device summary text
func parseModel(summary string) (string, bool) {
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Model:") {
			model := strings.TrimSpace(strings.TrimPrefix(line, "Model:"))
			if model != "" {
				return model, true
			}
		}
	}
	return "", false
}

// writeFileAtomic writes data to path via a temp file and rename, so
// readers of the fixed preview path never observe a short read of a
// half-written frame.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// removeIfExists deletes a possibly partial file, ignoring errors
func removeIfExists(path string) {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
}
