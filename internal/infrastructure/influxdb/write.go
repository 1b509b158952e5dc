package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordSale writes a sales report measurement.
//
// Non-blocking; points are batched and sent asynchronously. Safe to call
// from the ingest hot path.
func (c *Client) RecordSale(deviceID, interval string, amount float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sales",
		map[string]string{
			"device_id": deviceID,
			"interval":  interval,
		},
		map[string]interface{}{
			"amount": amount,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordAlert writes an intrusion alert state change. active is true for a
// raise and false for a clear; deviceID may be empty for fleet-wide events.
func (c *Client) RecordAlert(deviceID, triggeredBy string, active bool) {
	if !c.IsConnected() {
		return
	}

	state := 0.0
	if active {
		state = 1.0
	}

	tags := map[string]string{"triggered_by": triggeredBy}
	if deviceID != "" {
		tags["device_id"] = deviceID
	}

	point := write.NewPoint(
		"intrusion",
		tags,
		map[string]interface{}{
			"active": state,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
