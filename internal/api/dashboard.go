package api

import (
	"encoding/json"
	"net/http"

	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

// dashboardRequest is the body for POST /api/dashboard.
type dashboardRequest struct {
	DeviceID string `json:"device_id"`
}

// handleDashboard is the device's boot call: it registers (or touches) the
// device and returns today's takings plus the settings the device must obey.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var req dashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	dev, err := s.registry.Upsert(r.Context(), req.DeviceID)
	if err != nil {
		s.logger.Error("dashboard upsert failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to register device")
		return
	}

	daily, err := s.aggregator.SumSince(r.Context(), dev.ID, telemetry.PeriodDaily)
	if err != nil {
		s.logger.Error("dashboard sales sum failed", "device_id", dev.ID, "error", err)
		writeInternalError(w, "failed to read sales")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"daily_sales":     daily,
		"coin_rejection":  dev.Settings.CoinRejection,
		"sensors_enabled": dev.Settings.SensorsEnabled,
	})
}
