package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for the durable event log.
//
// The store accepts writes for any device_id; keeping the device registry
// consistent is the caller's job (ingestion upserts the device on every
// push). Sales reports and alerts are append-only.
type Store interface {
	// AppendSales durably records a sales report and returns its ID.
	AppendSales(ctx context.Context, deviceID string, interval Interval, amount float64, ts time.Time) (string, error)

	// AppendAlert durably records an intrusion alert and returns its ID.
	// deviceID may be empty for unscoped alerts.
	AppendAlert(ctx context.Context, deviceID, triggeredBy string, ts time.Time) (string, error)

	// QuerySalesSince returns the device's sales reports with a timestamp at
	// or after since, ordered by timestamp ascending.
	QuerySalesSince(ctx context.Context, deviceID string, since time.Time) ([]SalesReport, error)

	// ResolveAlert marks a single alert resolved.
	// Returns ErrAlertNotFound if the ID does not exist.
	ResolveAlert(ctx context.Context, id string) error

	// ResolveDeviceAlerts marks all unresolved alerts for a device resolved
	// and returns how many were affected. An empty deviceID resolves every
	// unresolved alert (fleet-wide clear). Zero is not an error.
	ResolveDeviceAlerts(ctx context.Context, deviceID string) (int, error)

	// RecentAlerts returns the most recent unresolved alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]IntrusionAlert, error)
}

// SQLiteStore implements Store using SQLite.
//
// Durability: the connection commits synchronously (database package opens
// with WAL + synchronous=NORMAL), so a report is crash-durable before
// Append returns. Sales data is financial; callers must not acknowledge an
// ingest before the append succeeds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed event store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// AppendSales durably records a sales report.
func (s *SQLiteStore) AppendSales(ctx context.Context, deviceID string, interval Interval, amount float64, ts time.Time) (string, error) {
	if strings.TrimSpace(deviceID) == "" {
		return "", ErrInvalidDeviceID
	}
	if !ValidInterval(interval) {
		return "", ErrInvalidInterval
	}
	if amount < 0 {
		return "", ErrNegativeAmount
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sales_reports (id, device_id, interval, amount, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, deviceID, string(interval), amount, formatTime(ts),
	)
	if err != nil {
		return "", fmt.Errorf("appending sales report: %w", err)
	}
	return id, nil
}

// AppendAlert durably records an intrusion alert.
func (s *SQLiteStore) AppendAlert(ctx context.Context, deviceID, triggeredBy string, ts time.Time) (string, error) {
	if strings.TrimSpace(triggeredBy) == "" {
		triggeredBy = "unknown"
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intrusion_alerts (id, device_id, triggered_by, status, timestamp, resolved)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		id, nullableString(deviceID), triggeredBy, AlertStatusActive, formatTime(ts),
	)
	if err != nil {
		return "", fmt.Errorf("appending intrusion alert: %w", err)
	}
	return id, nil
}

// QuerySalesSince returns sales reports at or after since, oldest first.
func (s *SQLiteStore) QuerySalesSince(ctx context.Context, deviceID string, since time.Time) ([]SalesReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, interval, amount, timestamp
		 FROM sales_reports
		 WHERE device_id = ? AND timestamp >= ?
		 ORDER BY timestamp ASC`,
		deviceID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sales reports: %w", err)
	}
	defer rows.Close()

	var reports []SalesReport
	for rows.Next() {
		var (
			r        SalesReport
			interval string
			ts       string
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &interval, &r.Amount, &ts); err != nil {
			return nil, fmt.Errorf("scanning sales report: %w", err)
		}
		r.Interval = Interval(interval)
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing report timestamp: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales reports: %w", err)
	}
	return reports, nil
}

// ResolveAlert marks a single alert resolved.
func (s *SQLiteStore) ResolveAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE intrusion_alerts SET resolved = 1, status = ? WHERE id = ?`,
		AlertStatusResolved, id,
	)
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ResolveDeviceAlerts marks all unresolved alerts for a device resolved.
// An empty deviceID clears every unresolved alert.
func (s *SQLiteStore) ResolveDeviceAlerts(ctx context.Context, deviceID string) (int, error) {
	query := `UPDATE intrusion_alerts SET resolved = 1, status = ? WHERE resolved = 0`
	args := []any{AlertStatusResolved}
	if deviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, deviceID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("resolving device alerts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(affected), nil
}

// RecentAlerts returns the most recent unresolved alerts, newest first.
func (s *SQLiteStore) RecentAlerts(ctx context.Context, limit int) ([]IntrusionAlert, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, triggered_by, status, timestamp, resolved
		 FROM intrusion_alerts
		 WHERE resolved = 0
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []IntrusionAlert
	for rows.Next() {
		var (
			a        IntrusionAlert
			deviceID sql.NullString
			ts       string
			resolved int
		)
		if err := rows.Scan(&a.ID, &deviceID, &a.TriggeredBy, &a.Status, &ts, &resolved); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.DeviceID = deviceID.String
		a.Resolved = resolved != 0
		if a.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing alert timestamp: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}

// timeLayout is fixed-width UTC so stored timestamps sort lexicographically
// in SQLite. RFC3339Nano trims trailing fraction zeros, which would order a
// whole-second value after fractional values in the same second.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
