package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vendwatch/vendwatch-core/internal/ingest"
	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

// salesReportRequest is the body for POST /api/sales-report.
type salesReportRequest struct {
	DeviceID string  `json:"device_id"`
	Interval string  `json:"interval"`
	Amount   float64 `json:"sales_amount"`
}

// handleSalesReport ingests a device sales push.
//
// The response is sent only after the report is durably stored; the live
// broadcast happens inside the gateway and never delays or fails the
// response.
func (s *Server) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	var req salesReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	report, err := s.gateway.SalesReport(r.Context(), ingest.SalesReportRequest{
		DeviceID: req.DeviceID,
		Interval: req.Interval,
		Amount:   req.Amount,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidReport) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("sales report ingest failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to record sales report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("recorded %s report for %s", report.Interval, report.DeviceID),
		"amount":  report.Amount,
	})
}

// salesStatsResponse is the body for GET /api/sales/stats.
type salesStatsResponse struct {
	Success bool `json:"success"`
	telemetry.Stats
}

// handleSalesStats returns aggregated sales for a device over a period.
// An unknown period falls back to daily.
func (s *Server) handleSalesStats(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeBadRequest(w, "device_id query parameter is required")
		return
	}
	period := telemetry.Period(r.URL.Query().Get("period"))

	stats, err := s.aggregator.StatsSince(r.Context(), deviceID, period)
	if err != nil {
		s.logger.Error("sales stats query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to aggregate sales")
		return
	}

	writeJSON(w, http.StatusOK, salesStatsResponse{Success: true, Stats: stats})
}
