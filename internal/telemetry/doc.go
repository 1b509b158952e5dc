// Package telemetry implements the durable event log and sales aggregation
// for VendWatch Core.
//
// Two record kinds live here:
//
//   - SalesReport: append-only, immutable financial records. Writes are
//     crash-durable before the ingest request is acknowledged.
//   - IntrusionAlert: append-only except for the Resolved flag, which the
//     disable-alarm action flips.
//
// The store accepts writes for any device_id; the device registry is kept
// consistent by the ingestion gateway, not by foreign keys here.
//
// The Aggregator computes simple range-sum statistics (daily, weekly,
// monthly cutoffs) directly from the store on every call. This is not a
// time-series database: no windowed analytics, no caching.
package telemetry
