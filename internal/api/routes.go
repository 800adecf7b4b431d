package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Camera
		r.Route("/camera", func(r chi.Router) {
			r.Get("/status", s.HandleCameraStatus)
			r.Get("/settings", s.HandleListSettings)
			r.Get("/settings/*", s.HandleGetSetting)
			r.Post("/settings/*", s.HandleSetSetting)
		})

		// Single capture
		r.Post("/capture/single", s.HandleCaptureSingle)

		// Preview
		r.Route("/preview", func(r chi.Router) {
			r.Post("/start", s.HandlePreviewStart)
			r.Post("/stop", s.HandlePreviewStop)
			r.Get("/image", s.HandlePreviewImage)
		})

		// Timelapse
		r.Route("/timelapse", func(r chi.Router) {
			r.Post("/start", s.HandleTimelapseStart)
			r.Post("/stop", s.HandleTimelapseStop)
			r.Get("/status", s.HandleTimelapseStatus)
			r.Get("/sequences", s.HandleListSequences)
			r.Post("/sequences/{folder}/assemble", s.HandleAssembleSequence)
		})

		// History
		r.Route("/history", func(r chi.Router) {
			r.Get("/captures", s.HandleListCaptures)
			r.Get("/runs", s.HandleListRuns)
		})
	})
}
