package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vendwatch/vendwatch-core/internal/device"
)

// handleListDevices returns every known device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("device list failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// deviceSettingsRequest is the body for POST /api/device/settings.
// Absent fields keep their current value.
type deviceSettingsRequest struct {
	DeviceID       string `json:"device_id"`
	SensorsEnabled *bool  `json:"sensors_enabled,omitempty"`
	CoinRejection  *bool  `json:"coin_rejection,omitempty"`
}

// handleDeviceSettings merges a partial settings update. The device is
// created with defaults first if it has never reported.
func (s *Server) handleDeviceSettings(w http.ResponseWriter, r *http.Request) {
	var req deviceSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	dev, err := s.registry.UpdateSettings(r.Context(), req.DeviceID, device.SettingsPatch{
		SensorsEnabled: req.SensorsEnabled,
		CoinRejection:  req.CoinRejection,
	})
	if err != nil {
		if errors.Is(err, device.ErrInvalidDeviceID) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("settings update failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to update settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"device":  dev,
	})
}
