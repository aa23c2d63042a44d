package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when two devices share an ID.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidPowerState is returned for any power value other than On or Off.
	ErrInvalidPowerState = errors.New("device: invalid power state")

	// ErrMissingPower is returned when a power command carries no power value.
	ErrMissingPower = errors.New("device: power value is required")
)
