package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/capture"
	"github.com/tethercam/camera-server/internal/processing"
)

// ========== Timelapse handlers ==========

// HandleTimelapseStart begins a timelapse sequence. Only one sequence
// may run at a time; a second start returns 409.
func (s *RESTServer) HandleTimelapseStart(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Interval int `json:"interval"`
		Count    int `json:"count"`
	}{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Interval == 0 {
		req.Interval = s.config.Timelapse.DefaultInterval
	}
	if req.Count == 0 {
		req.Count = s.config.Timelapse.DefaultCount
	}

	if err := s.timelapse.Start(req.Interval, req.Count); err != nil {
		if errors.Is(err, capture.ErrAlreadyRunning) {
			s.respondResult(w, http.StatusConflict, false, "A timelapse is already running.")
			return
		}
		s.respondResult(w, http.StatusBadRequest, false, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Timelapse started.",
		"interval": req.Interval,
		"count":    req.Count,
	})
}

// HandleTimelapseStop requests cancellation of the active sequence
func (s *RESTServer) HandleTimelapseStop(w http.ResponseWriter, r *http.Request) {
	if err := s.timelapse.Stop(); err != nil {
		s.respondResult(w, http.StatusOK, false, "No timelapse is running.")
		return
	}

	s.respondResult(w, http.StatusOK, true, "Stopping...")
}

// HandleTimelapseStatus reports the state of the timelapse loop
func (s *RESTServer) HandleTimelapseStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.timelapse.Status())
}

// HandleListSequences lists captured sequence folders, newest first
func (s *RESTServer) HandleListSequences(w http.ResponseWriter, r *http.Request) {
	folders, err := s.timelapse.ListSequences()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sequences": folders,
	})
}

// HandleAssembleSequence encodes a captured sequence into a video. The
// encode runs in the background; clients poll the output file.
func (s *RESTServer) HandleAssembleSequence(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")

	dir, err := s.timelapse.SequenceDir(folder)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	req := struct {
		FrameRate  int    `json:"frameRate"`
		Preset     string `json:"preset"`
		CRF        int    `json:"crf"`
		CropWidth  int    `json:"cropWidth"`
		CropHeight int    `json:"cropHeight"`
		CropX      int    `json:"cropX"`
		CropY      int    `json:"cropY"`
		Scale      string `json:"scale"`
	}{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.FrameRate == 0 {
		req.FrameRate = s.config.FFmpeg.FrameRate
	}
	if req.Preset == "" {
		req.Preset = s.config.FFmpeg.Preset
	}
	if req.CRF == 0 {
		req.CRF = s.config.FFmpeg.CRF
	}

	outputPath := filepath.Join(dir, folder+".mp4")
	opts := processing.Options{
		FrameRate:  req.FrameRate,
		Preset:     req.Preset,
		CRF:        req.CRF,
		CropWidth:  req.CropWidth,
		CropHeight: req.CropHeight,
		CropX:      req.CropX,
		CropY:      req.CropY,
		Scale:      req.Scale,
	}

	go func() {
		if err := s.assembler.Assemble(context.Background(), dir, outputPath, opts); err != nil {
			log.Error().Err(err).Str("folder", folder).Msg("sequence assembly failed")
		}
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Assembly started.",
		"output":  outputPath,
	})
}

// ========== History handlers ==========

func paging(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 20
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

// HandleListCaptures lists capture history
func (s *RESTServer) HandleListCaptures(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)

	records, total, err := s.store.ListCaptures(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"captures": records,
		"total":    total,
	})
}

// HandleListRuns lists timelapse run history
func (s *RESTServer) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)

	runs, total, err := s.store.ListTimelapseRuns(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": total,
	})
}
