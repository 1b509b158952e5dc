// Package ingest is the single write path for inbound device telemetry.
//
// The Gateway validates each push, touches the device registry, appends the
// event durably, and only then publishes to live dashboard clients. Both
// transports (HTTP handlers in the api package, MQTT subscriptions via
// AttachMQTT) converge here so ordering and durability rules live in one
// place.
package ingest
