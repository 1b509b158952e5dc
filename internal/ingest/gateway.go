package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/device"
	"github.com/vendwatch/vendwatch-core/internal/hub"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

// Publisher fans events out to live dashboard clients.
type Publisher interface {
	Publish(eventType string, payload any)
}

// Metrics mirrors ingested telemetry to an external time-series store.
// Implementations must not block; see the influxdb package.
type Metrics interface {
	RecordSale(deviceID, interval string, amount float64)
	RecordAlert(deviceID, triggeredBy string, active bool)
}

// Gateway validates inbound device pushes, applies them to the registry
// and the event store, and publishes the resulting events.
//
// The caller is acknowledged only after the durable append succeeds;
// broadcast and metrics are fire-and-forget relative to the response.
type Gateway struct {
	registry *device.Registry
	store    telemetry.Store
	pub      Publisher
	metrics  Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewGateway wires the gateway. metrics may be nil when no time-series
// mirror is configured.
func NewGateway(registry *device.Registry, store telemetry.Store, pub Publisher, metrics Metrics, logger *logging.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		store:    store,
		pub:      pub,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// SalesReportRequest is a normalized inbound sales push.
type SalesReportRequest struct {
	DeviceID  string
	Interval  string
	Amount    float64
	Timestamp time.Time // zero means "now"
}

// SalesReport records a sales push and publishes a salesUpdate event.
// The returned report carries the generated record ID.
func (g *Gateway) SalesReport(ctx context.Context, req SalesReportRequest) (*telemetry.SalesReport, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrInvalidReport)
	}
	interval := telemetry.Interval(strings.ToLower(strings.TrimSpace(req.Interval)))
	if !telemetry.ValidInterval(interval) {
		return nil, fmt.Errorf("%w: unknown interval %q", ErrInvalidReport, req.Interval)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: sales_amount must not be negative", ErrInvalidReport)
	}

	now := g.now()
	ts := req.Timestamp
	if ts.IsZero() {
		ts = now
	}

	if _, err := g.registry.Upsert(ctx, deviceID); err != nil {
		return nil, fmt.Errorf("upserting device: %w", err)
	}

	id, err := g.store.AppendSales(ctx, deviceID, interval, req.Amount, ts)
	if err != nil {
		return nil, fmt.Errorf("recording sales report: %w", err)
	}

	g.publishSales(interval, req.Amount)
	g.pub.Publish(hub.EventDeviceStatus, hub.DeviceStatusUpdate{DeviceID: deviceID, Status: string(device.StatusOnline)})
	if g.metrics != nil {
		g.metrics.RecordSale(deviceID, string(interval), req.Amount)
	}

	g.logger.Info("sales report ingested", "device_id", deviceID, "interval", interval, "amount", req.Amount)

	return &telemetry.SalesReport{
		ID:        id,
		DeviceID:  deviceID,
		Interval:  interval,
		Amount:    req.Amount,
		Timestamp: ts.UTC(),
	}, nil
}

// IntrusionRequest is a normalized inbound intrusion push. DeviceID is
// optional; unscoped alerts broadcast to all subscribers without touching
// any device state.
type IntrusionRequest struct {
	DeviceID    string
	TriggeredBy string
	Timestamp   time.Time // zero means "now"
}

// IntrusionAlert records an intrusion event, moves the originating device
// (if any) into alert status, and publishes an intrusionAlert event.
func (g *Gateway) IntrusionAlert(ctx context.Context, req IntrusionRequest) (*telemetry.IntrusionAlert, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	triggeredBy := strings.TrimSpace(req.TriggeredBy)

	now := g.now()
	ts := req.Timestamp
	if ts.IsZero() {
		ts = now
	}

	if deviceID != "" {
		if _, err := g.registry.Upsert(ctx, deviceID); err != nil {
			return nil, fmt.Errorf("upserting device: %w", err)
		}
		if err := g.registry.SetStatus(ctx, deviceID, device.StatusAlert); err != nil {
			return nil, fmt.Errorf("setting alert status: %w", err)
		}
	}

	id, err := g.store.AppendAlert(ctx, deviceID, triggeredBy, ts)
	if err != nil {
		return nil, fmt.Errorf("recording intrusion alert: %w", err)
	}

	g.pub.Publish(hub.EventIntrusionAlert, hub.IntrusionUpdate{Alert: true, DeviceID: deviceID})
	if deviceID != "" {
		g.pub.Publish(hub.EventDeviceStatus, hub.DeviceStatusUpdate{DeviceID: deviceID, Status: string(device.StatusAlert)})
	}
	if g.metrics != nil {
		g.metrics.RecordAlert(deviceID, triggeredBy, true)
	}

	g.logger.Warn("intrusion alert ingested", "device_id", deviceID, "triggered_by", triggeredBy)

	return &telemetry.IntrusionAlert{
		ID:          id,
		DeviceID:    deviceID,
		TriggeredBy: triggeredBy,
		Status:      telemetry.AlertStatusActive,
		Timestamp:   ts.UTC(),
	}, nil
}

// DisableAlarm resolves unresolved alerts, resets the originating device
// to online, and publishes the clearing intrusionAlert event. An empty
// deviceID clears every unresolved alert fleet-wide.
func (g *Gateway) DisableAlarm(ctx context.Context, deviceID string) (int, error) {
	deviceID = strings.TrimSpace(deviceID)

	resolved, err := g.store.ResolveDeviceAlerts(ctx, deviceID)
	if err != nil {
		return 0, fmt.Errorf("resolving alerts: %w", err)
	}

	if deviceID != "" {
		// A device unseen by the registry can still be named in a clear
		// request; that is not an error for the caller.
		if err := g.registry.SetStatus(ctx, deviceID, device.StatusOnline); err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
			return resolved, fmt.Errorf("resetting device status: %w", err)
		}
		g.pub.Publish(hub.EventDeviceStatus, hub.DeviceStatusUpdate{DeviceID: deviceID, Status: string(device.StatusOnline)})
	}

	g.pub.Publish(hub.EventIntrusionAlert, hub.IntrusionUpdate{Alert: false, DeviceID: deviceID})
	if g.metrics != nil {
		g.metrics.RecordAlert(deviceID, "", false)
	}

	g.logger.Info("alarm disabled", "device_id", deviceID, "alerts_resolved", resolved)
	return resolved, nil
}

// publishSales maps an interval label onto the partial salesUpdate shape.
func (g *Gateway) publishSales(interval telemetry.Interval, amount float64) {
	update := hub.SalesUpdate{}
	switch interval {
	case telemetry.IntervalWeekly:
		update.Weekly = &amount
	case telemetry.IntervalMonthly:
		update.Monthly = &amount
	default:
		update.Daily = &amount
	}
	g.pub.Publish(hub.EventSalesUpdate, update)
}
