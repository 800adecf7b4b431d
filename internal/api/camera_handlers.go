package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/camera"
	"github.com/tethercam/camera-server/internal/models"
)

// ========== Camera handlers ==========

// HandleCameraStatus reports connection state and model
func (s *RESTServer) HandleCameraStatus(w http.ResponseWriter, r *http.Request) {
	status := s.session.Status(r.Context())
	s.respondJSON(w, http.StatusOK, status)
}

// HandleListSettings returns the full configuration tree
func (s *RESTServer) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	tree, err := s.session.ListSettings(r.Context())
	if err != nil {
		if camera.IsConnectionError(err) {
			s.respondError(w, http.StatusServiceUnavailable, "Camera not available.")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, tree)
}

// settingPath extracts the configuration path from the URL tail. Clients
// that cannot put slashes in a path segment send "///" as a separator
// placeholder instead.
func settingPath(r *http.Request) string {
	name := chi.URLParam(r, "*")
	return strings.ReplaceAll(name, "///", "/")
}

// HandleGetSetting returns the current value of one setting
func (s *RESTServer) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	path := settingPath(r)

	value, err := s.session.GetSetting(r.Context(), path)
	if err != nil {
		switch {
		case camera.IsConnectionError(err):
			s.respondError(w, http.StatusServiceUnavailable, "Camera not available.")
		case errors.Is(err, camera.ErrSettingNotFound):
			s.respondError(w, http.StatusNotFound, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"path":  path,
		"value": value,
	})
}

// HandleSetSetting updates one setting value
func (s *RESTServer) HandleSetSetting(w http.ResponseWriter, r *http.Request) {
	path := settingPath(r)

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := s.session.SetSetting(r.Context(), path, req.Value)
	if err != nil {
		var verr *camera.VerificationError
		switch {
		case camera.IsConnectionError(err):
			s.respondError(w, http.StatusServiceUnavailable, "Camera not available.")
		case errors.Is(err, camera.ErrSettingNotFound):
			s.respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, camera.ErrSettingReadOnly):
			s.respondResult(w, http.StatusForbidden, false, err.Error())
		case errors.As(err, &verr):
			s.respondResult(w, http.StatusInternalServerError, false, err.Error())
		default:
			s.respondResult(w, http.StatusBadRequest, false, err.Error())
		}
		return
	}

	s.respondResult(w, http.StatusOK, true, message)
}

// ========== Capture handlers ==========

// HandleCaptureSingle performs one full-resolution capture. With
// download disabled the image stays on the camera's own storage and the
// returned file path is null.
func (s *RESTServer) HandleCaptureSingle(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Download *bool `json:"download"`
	}{}
	if r.Body != nil {
		// An empty body means default options
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	download := req.Download == nil || *req.Download

	savePath := ""
	if download {
		filename := time.Now().Format("20060102_150405") + ".jpg"
		savePath = filepath.Join(s.config.Paths.CaptureDir, filename)
	}

	path, err := s.session.CaptureImage(r.Context(), savePath)
	if err != nil {
		if camera.IsConnectionError(err) {
			s.respondError(w, http.StatusServiceUnavailable, "Camera not available.")
			return
		}
		s.respondResult(w, http.StatusInternalServerError, false, err.Error())
		return
	}

	record := &models.CaptureRecord{
		ID:         uuid.New(),
		FilePath:   path,
		Downloaded: download,
		Source:     models.CaptureSourceSingle,
		CreatedAt:  time.Now(),
	}
	if err := s.store.RecordCapture(r.Context(), record); err != nil {
		log.Warn().Err(err).Msg("failed to record capture")
	}
	if err := s.events.CaptureCompleted(record); err != nil {
		log.Warn().Err(err).Msg("failed to publish capture event")
	}

	var filePath interface{}
	if path != "" {
		filePath = path
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Image captured.",
		"filePath": filePath,
	})
}

// ========== Preview handlers ==========

// HandlePreviewStart starts the preview loop
func (s *RESTServer) HandlePreviewStart(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Rate     float64 `json:"rate"`
		Rotation int     `json:"rotation"`
		Flip     bool    `json:"flip"`
	}{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err := s.preview.Start(req.Rate, camera.PreviewOptions{
		Rotation: req.Rotation,
		Flip:     req.Flip,
	})
	if err != nil {
		s.respondResult(w, http.StatusOK, false, "Preview already active.")
		return
	}

	s.respondResult(w, http.StatusOK, true, "Preview started.")
}

// HandlePreviewStop stops the preview loop
func (s *RESTServer) HandlePreviewStop(w http.ResponseWriter, r *http.Request) {
	if err := s.preview.Stop(); err != nil {
		s.respondResult(w, http.StatusOK, false, "Preview not active.")
		return
	}

	s.respondResult(w, http.StatusOK, true, "Preview stopped.")
}

// HandlePreviewImage serves the latest preview frame. The file is
// rewritten in place by the loop, so caching is disabled end to end.
func (s *RESTServer) HandlePreviewImage(w http.ResponseWriter, r *http.Request) {
	path := s.preview.Path()
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, "No preview image available.")
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.ServeFile(w, r, path)
}
