package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// Upsert creates the device with defaults if absent, otherwise touches
	// last_seen and sets status to online. Returns the resulting device.
	Upsert(ctx context.Context, id string, now time.Time) (*Device, error)

	// SetStatus updates only the status of a device.
	// Returns ErrDeviceNotFound if the device does not exist.
	SetStatus(ctx context.Context, id string, status Status, now time.Time) error

	// UpdateSettings merges only the provided settings fields, creating the
	// device with defaults first if absent. Returns the resulting device.
	UpdateSettings(ctx context.Context, id string, patch SettingsPatch, now time.Time) (*Device, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `device_id, name, location, status, last_seen,
	sensors_enabled, coin_rejection, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return dev, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY device_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *dev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert creates the device with defaults if absent, otherwise touches
// last_seen and sets status to online.
//
// The single INSERT ... ON CONFLICT statement keeps concurrent upserts for
// the same device_id atomic: two racing calls never produce two rows, and
// the later call's last_seen wins.
func (r *SQLiteRepository) Upsert(ctx context.Context, id string, now time.Time) (*Device, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidDeviceID
	}

	defaults := DefaultSettings()
	ts := formatTime(now)

	query := `
		INSERT INTO devices (device_id, status, last_seen, sensors_enabled, coin_rejection, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			status = excluded.status,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		id, string(StatusOnline), ts,
		boolToInt(defaults.SensorsEnabled), boolToInt(defaults.CoinRejection),
		ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting device: %w", err)
	}

	return r.GetByID(ctx, id)
}

// SetStatus updates only the status of a device.
func (r *SQLiteRepository) SetStatus(ctx context.Context, id string, status Status, now time.Time) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, updated_at = ? WHERE device_id = ?`,
		string(status), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpdateSettings merges only the provided settings fields, creating the
// device with defaults first if absent.
//
// Settings writes from the dashboard and status touches from ingestion hit
// disjoint columns, so last-writer-wins per field is safe here.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, id string, patch SettingsPatch, now time.Time) (*Device, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidDeviceID
	}

	defaults := DefaultSettings()
	ts := formatTime(now)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	// Ensure the row exists without disturbing an existing one.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (device_id, status, sensors_enabled, coin_rejection, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO NOTHING`,
		id, string(StatusOffline),
		boolToInt(defaults.SensorsEnabled), boolToInt(defaults.CoinRejection),
		ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("ensuring device exists: %w", err)
	}

	// Update only the provided fields.
	set := []string{"updated_at = ?"}
	args := []any{ts}
	if patch.SensorsEnabled != nil {
		set = append(set, "sensors_enabled = ?")
		args = append(args, boolToInt(*patch.SensorsEnabled))
	}
	if patch.CoinRejection != nil {
		set = append(set, "coin_rejection = ?")
		args = append(args, boolToInt(*patch.CoinRejection))
	}
	args = append(args, id)

	query := "UPDATE devices SET " + strings.Join(set, ", ") + " WHERE device_id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating device settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing settings update: %w", err)
	}

	return r.GetByID(ctx, id)
}

// scanner abstracts over *sql.Row and *sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice reads one device row.
func scanDevice(s scanner) (*Device, error) {
	var (
		dev            Device
		status         string
		lastSeen       sql.NullString
		sensorsEnabled int
		coinRejection  int
		createdAt      string
		updatedAt      string
	)

	err := s.Scan(
		&dev.ID, &dev.Name, &dev.Location, &status, &lastSeen,
		&sensorsEnabled, &coinRejection, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	dev.Status = Status(status)
	dev.Settings = Settings{
		SensorsEnabled: sensorsEnabled != 0,
		CoinRejection:  coinRejection != 0,
	}

	if lastSeen.Valid {
		t, err := parseTime(lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		dev.LastSeen = &t
	}

	if dev.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if dev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &dev, nil
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
