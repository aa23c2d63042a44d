package device

import (
	"context"
	"time"
)

// PowerLogEntry is one recorded power command.
type PowerLogEntry struct {
	ID         int64      `json:"id"`
	DeviceID   int        `json:"device_id"`
	DeviceName string     `json:"device_name"`
	Power      PowerState `json:"power"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PowerLogRepository stores the audit trail of accepted power commands.
//
// It is write-mostly: entries are never used to restore device state.
// Implementations must be thread-safe and use UTC timestamps.
type PowerLogRepository interface {
	// Record stores one power change.
	Record(ctx context.Context, change PowerChange) error

	// Recent returns up to limit entries for deviceID, newest first.
	Recent(ctx context.Context, deviceID int, limit int) ([]PowerLogEntry, error)
}

// recordTimeout bounds a single audit insert.
const recordTimeout = 5 * time.Second

// RecordPowerChanges returns a listener that writes every change to repo.
// Failures are logged and never reach the caller of ChangePower.
func RecordPowerChanges(repo PowerLogRepository, logger Logger) PowerChangeListener {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(change PowerChange) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := repo.Record(ctx, change); err != nil {
			logger.Warn("failed to record power change",
				"device_id", change.Device.ID,
				"error", err,
			)
		}
	}
}
