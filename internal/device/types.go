package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// PowerState is the on/off state of a device.
type PowerState string

// Power states. They are serialised exactly as written.
const (
	PowerOn  PowerState = "On"
	PowerOff PowerState = "Off"
)

// Sources of a power change.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// TimestampFormat is the layout of ConsumptionSample.Timestamp.
const TimestampFormat = "2006-01-02T15:04:05Z"

// ParsePowerState converts s to a PowerState. Matching is exact.
func ParsePowerState(s string) (PowerState, error) {
	switch PowerState(s) {
	case PowerOn, PowerOff:
		return PowerState(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPowerState, s)
	}
}

// IsValid reports whether p is On or Off.
func (p PowerState) IsValid() bool {
	return p == PowerOn || p == PowerOff
}

// UnmarshalJSON accepts only the strings "On" and "Off".
func (p *PowerState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPowerState, data)
	}
	parsed, err := ParsePowerState(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ConsumptionSample is one simulated measurement. It is never modified
// after creation.
type ConsumptionSample struct {
	// Timestamp is the UTC sample time in TimestampFormat.
	Timestamp string `json:"timestamp"`

	// PowerUsage is the simulated draw in watts.
	PowerUsage float64 `json:"power_usage"`

	// EnergyConsumed is the energy for one tick interval in kWh.
	EnergyConsumed float64 `json:"energy_consumed"`
}

// Time parses Timestamp back into a time.Time.
func (s ConsumptionSample) Time() (time.Time, error) {
	return time.Parse(TimestampFormat, s.Timestamp)
}

// Snapshot is a point-in-time copy of a device, safe to hand out and
// serialise. It does not share memory with the Device it came from.
type Snapshot struct {
	ID               int                 `json:"id"`
	Name             string              `json:"name"`
	Power            PowerState          `json:"power"`
	TotalConsumption float64             `json:"total_consumption"`
	ConsumptionData  []ConsumptionSample `json:"consumption_data"`
}

// Reading is what one tick produced for one device.
type Reading struct {
	DeviceID         int               `json:"device_id"`
	DeviceName       string            `json:"device_name"`
	Sample           ConsumptionSample `json:"sample"`
	TotalConsumption float64           `json:"total_consumption"`
}

// PowerChange describes an accepted power command.
type PowerChange struct {
	// Device is the state right after the change.
	Device Snapshot `json:"device"`

	// Source identifies where the command came from (api, mqtt).
	Source string `json:"source"`

	ChangedAt time.Time `json:"changed_at"`
}

// SetPowerRequest is the body of a power command.
type SetPowerRequest struct {
	Power *PowerState `json:"power"`
}

// Validate checks that a power value was supplied. Unknown values are
// already rejected while decoding.
func (r SetPowerRequest) Validate() error {
	if r.Power == nil {
		return ErrMissingPower
	}
	if !r.Power.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPowerState, *r.Power)
	}
	return nil
}

// Stats summarises the fleet.
type Stats struct {
	Devices          int     `json:"devices"`
	On               int     `json:"on"`
	Off              int     `json:"off"`
	TotalConsumption float64 `json:"total_consumption"`
}
