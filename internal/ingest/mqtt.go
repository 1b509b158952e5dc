package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/infrastructure/mqtt"
)

// mqttHandlerTimeout bounds the registry and store work done for a single
// broker message.
const mqttHandlerTimeout = 10 * time.Second

// salesMessage is the JSON payload devices publish on vendwatch/report/sales.
type salesMessage struct {
	DeviceID  string  `json:"device_id"`
	Interval  string  `json:"interval"`
	Amount    float64 `json:"sales_amount"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// intrusionMessage is the JSON payload devices publish on
// vendwatch/report/intrusion.
type intrusionMessage struct {
	DeviceID    string `json:"device_id,omitempty"`
	TriggeredBy string `json:"triggered_by"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// AttachMQTT subscribes the gateway to the device report topics. Reports
// arriving over the broker flow through the same validate/upsert/append/
// publish path as HTTP pushes.
func AttachMQTT(client *mqtt.Client, gw *Gateway, qos byte) error {
	topics := mqtt.Topics{}

	err := client.Subscribe(topics.SalesReport(), qos, func(_ string, payload []byte) error {
		var msg salesMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("parsing sales report: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), mqttHandlerTimeout)
		defer cancel()

		_, err := gw.SalesReport(ctx, SalesReportRequest{
			DeviceID:  msg.DeviceID,
			Interval:  msg.Interval,
			Amount:    msg.Amount,
			Timestamp: parseMessageTime(msg.Timestamp),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("subscribing to sales reports: %w", err)
	}

	err = client.Subscribe(topics.IntrusionReport(), qos, func(_ string, payload []byte) error {
		var msg intrusionMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("parsing intrusion report: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), mqttHandlerTimeout)
		defer cancel()

		_, err := gw.IntrusionAlert(ctx, IntrusionRequest{
			DeviceID:    msg.DeviceID,
			TriggeredBy: msg.TriggeredBy,
			Timestamp:   parseMessageTime(msg.Timestamp),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("subscribing to intrusion reports: %w", err)
	}

	return nil
}

// parseMessageTime accepts RFC3339 timestamps from devices; anything else
// (including absence) falls back to server time via the zero value.
func parseMessageTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
