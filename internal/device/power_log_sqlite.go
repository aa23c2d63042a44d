package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultPowerLogLimit = 50
	maxPowerLogLimit     = 200

	// powerLogTimeFormat is fixed width so created_at sorts as text.
	powerLogTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// SQLitePowerLogRepository implements PowerLogRepository on the power_log table.
type SQLitePowerLogRepository struct {
	db *sql.DB
}

// NewSQLitePowerLogRepository creates a repository over an open, migrated database.
func NewSQLitePowerLogRepository(db *sql.DB) *SQLitePowerLogRepository {
	return &SQLitePowerLogRepository{db: db}
}

// Record inserts one power change.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - change: The accepted change; Device.Power and Source are stored
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLitePowerLogRepository) Record(ctx context.Context, change PowerChange) error {
	if !change.Device.Power.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPowerState, change.Device.Power)
	}
	source := change.Source
	if source == "" {
		source = SourceAPI
	}
	changedAt := change.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO power_log (device_id, device_name, power, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		change.Device.ID,
		change.Device.Name,
		string(change.Device.Power),
		source,
		changedAt.UTC().Format(powerLogTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting power log: %w", err)
	}
	return nil
}

// Recent returns the latest entries for a device, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Device identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []PowerLogEntry: Entries ordered by created_at DESC (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (r *SQLitePowerLogRepository) Recent(ctx context.Context, deviceID int, limit int) ([]PowerLogEntry, error) {
	if limit <= 0 {
		limit = defaultPowerLogLimit
	}
	if limit > maxPowerLogLimit {
		limit = maxPowerLogLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, device_name, power, source, created_at
		 FROM power_log
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying power log: %w", err)
	}
	defer rows.Close()

	entries := make([]PowerLogEntry, 0)
	for rows.Next() {
		var entry PowerLogEntry
		var power, createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.DeviceName, &power, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning power log: %w", err)
		}
		entry.Power = PowerState(power)

		ts, err := parsePowerLogTime(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = ts

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating power log: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (r *SQLitePowerLogRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(powerLogTimeFormat)
	result, err := r.db.ExecContext(ctx, "DELETE FROM power_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting power log: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// parsePowerLogTime accepts the insert format and the column default.
func parsePowerLogTime(value string) (time.Time, error) {
	ts, err := time.Parse(powerLogTimeFormat, value)
	if err == nil {
		return ts, nil
	}
	if fallback, fallbackErr := time.Parse(TimestampFormat, value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
