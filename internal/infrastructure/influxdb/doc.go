// Package influxdb mirrors ingested fleet telemetry into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring. The
// mirror is optional: when disabled in config the ingest path simply
// skips it.
//
// # Purpose
//
// Time-series storage for:
//   - Sales report amounts per device and interval
//   - Intrusion alert raise/clear transitions
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordSale("vm-001", "daily", 120.50)
//
// # Error Handling
//
// Write operations are non-blocking; batch errors surface through the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
