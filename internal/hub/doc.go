// Package hub fans telemetry events out to connected dashboard WebSocket
// clients.
//
// Producers (the ingestion gateway, the sales poller, the alarm file
// watcher, the HTTP API) call Publish, which serializes the event exactly
// once and delivers the same bytes to every client. Delivery never blocks
// the producer: each client has a buffered send channel, and a full buffer
// drops the frame for that client only. Dead connections remove themselves
// through their read pumps, so the membership set is self-healing.
package hub
