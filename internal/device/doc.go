// Package device implements the authoritative device registry for
// VendWatch Core.
//
// Devices are remote vending/kiosk units identified by a stable device_id.
// They are created lazily on first contact (upsert semantics) and never
// deleted by the core. Each device carries a status (online, offline,
// alert), a last_seen timestamp touched on every inbound push, and
// operator-controlled settings (sensors_enabled, coin_rejection).
//
// # Architecture
//
//	Registry (cache + thread safety)
//	    ↓
//	Repository (interface)
//	    ↓
//	SQLiteRepository (persistence)
//
// The Registry is the only type other components should use. It guarantees
// that concurrent settings updates from the dashboard and status touches
// from ingestion never lose either write: the two paths update disjoint
// columns, serialised through the single-writer SQLite connection.
package device
