package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/ingest"
)

// intrusionAlertRequest is the body for POST /api/intrusion-alert.
// device_id is optional; without it the alert broadcasts unscoped.
type intrusionAlertRequest struct {
	DeviceID    string `json:"device_id,omitempty"`
	TriggeredBy string `json:"triggered_by"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// handleIntrusionAlert ingests an intrusion event and broadcasts it.
func (s *Server) handleIntrusionAlert(w http.ResponseWriter, r *http.Request) {
	var req intrusionAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeBadRequest(w, "timestamp must be RFC3339")
			return
		}
		ts = parsed
	}

	alert, err := s.gateway.IntrusionAlert(r.Context(), ingest.IntrusionRequest{
		DeviceID:    req.DeviceID,
		TriggeredBy: req.TriggeredBy,
		Timestamp:   ts,
	})
	if err != nil {
		s.logger.Error("intrusion alert ingest failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to record intrusion alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "intrusion alert recorded",
		"alert_id": alert.ID,
	})
}

// disableAlarmRequest is the body for POST /api/disable-alarm.
// An empty device_id clears every unresolved alert.
type disableAlarmRequest struct {
	DeviceID string `json:"device_id"`
}

// handleDisableAlarm resolves alerts and broadcasts the clear.
func (s *Server) handleDisableAlarm(w http.ResponseWriter, r *http.Request) {
	var req disableAlarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	resolved, err := s.gateway.DisableAlarm(r.Context(), req.DeviceID)
	if err != nil {
		s.logger.Error("disable alarm failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to disable alarm")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"resolved": resolved,
	})
}

// handleListAlerts returns the most recent unresolved alerts.
//
// Query parameters:
//   - limit: maximum number of alerts (default 20)
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	alerts, err := s.store.RecentAlerts(r.Context(), limit)
	if err != nil {
		s.logger.Error("alert list failed", "error", err)
		writeInternalError(w, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
