package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device-facing ingest
		r.Post("/dashboard", s.handleDashboard)
		r.Post("/sales-report", s.handleSalesReport)
		r.Post("/intrusion-alert", s.handleIntrusionAlert)
		r.Post("/disable-alarm", s.handleDisableAlarm)

		// Dashboard queries
		r.Get("/sales/stats", s.handleSalesStats)
		r.Get("/devices", s.handleListDevices)
		r.Get("/recent-alerts", s.handleListAlerts)

		// Settings
		r.Post("/device/settings", s.handleDeviceSettings)
	})

	// Live dashboard feed
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
