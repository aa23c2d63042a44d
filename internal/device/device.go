package device

import (
	"fmt"
	"time"
)

// Device is one simulated appliance.
//
// A Device is not safe for concurrent use on its own. Once added to a
// Registry it must only be touched inside WithAll or WithOne.
type Device struct {
	id       int
	name     string
	power    PowerState
	total    float64
	history  *history
	interval time.Duration
}

// NewDevice creates a device that is switched On with an empty history.
//
// Parameters:
//   - id: Stable identifier, unique within a Registry
//   - name: Display name
//   - maxEntries: History capacity; values below 1 are raised to 1
//   - interval: Tick interval used for the energy of each sample
func NewDevice(id int, name string, maxEntries int, interval time.Duration) *Device {
	return &Device{
		id:       id,
		name:     name,
		power:    PowerOn,
		history:  newHistory(maxEntries),
		interval: interval,
	}
}

// ID returns the device identifier.
func (d *Device) ID() int { return d.id }

// Name returns the display name.
func (d *Device) Name() string { return d.name }

// Power returns the current power state.
func (d *Device) Power() PowerState { return d.power }

// TotalConsumption returns the kWh accumulated since the last switch Off.
func (d *Device) TotalConsumption() float64 { return d.total }

// HistoryLen returns the number of stored samples.
func (d *Device) HistoryLen() int { return d.history.len() }

// MaxEntries returns the history capacity.
func (d *Device) MaxEntries() int { return d.history.max }

// SimulateTick generates one sample when the device is On.
//
// Power is drawn uniformly from [MinPowerWatts, MaxPowerWatts) using src.
// The sample is stamped with now in UTC, appended to the history (evicting
// the oldest sample when full) and its energy is added to the total.
// When the device is Off nothing changes and ok is false.
func (d *Device) SimulateTick(src Source, now time.Time) (sample ConsumptionSample, ok bool) {
	if d.power != PowerOn {
		return ConsumptionSample{}, false
	}

	watts := drawPower(src)
	sample = ConsumptionSample{
		Timestamp:      now.UTC().Format(TimestampFormat),
		PowerUsage:     watts,
		EnergyConsumed: EnergyKWh(watts, d.interval),
	}

	d.history.push(sample)
	d.total += sample.EnergyConsumed
	return sample, true
}

// SetPower switches the device. Every request for Off resets the total
// to zero, including when the device is already Off.
func (d *Device) SetPower(state PowerState) error {
	if !state.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPowerState, state)
	}
	d.power = state
	if state == PowerOff {
		d.total = 0
	}
	return nil
}

// Snapshot returns a deep copy of the serialisable state.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{
		ID:               d.id,
		Name:             d.name,
		Power:            d.power,
		TotalConsumption: d.total,
		ConsumptionData:  d.history.list(),
	}
}
