package influxdb

import (
	"fmt"
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/powersim/internal/device"
)

// MeasurementEnergy is the measurement every reading is written to.
const MeasurementEnergy = "energy"

// ReadingPoint converts a tick reading into a point timestamped at the
// sample time.
//
// Tags: device_id, device_name. Fields: power_watts, energy_kwh, total_kwh.
func ReadingPoint(r device.Reading) (*write.Point, error) {
	ts, err := r.Sample.Time()
	if err != nil {
		return nil, fmt.Errorf("parsing sample timestamp: %w", err)
	}

	return write.NewPoint(
		MeasurementEnergy,
		map[string]string{
			"device_id":   strconv.Itoa(r.DeviceID),
			"device_name": r.DeviceName,
		},
		map[string]any{
			"power_watts": r.Sample.PowerUsage,
			"energy_kwh":  r.Sample.EnergyConsumed,
			"total_kwh":   r.TotalConsumption,
		},
		ts,
	), nil
}

// WriteReadings queues one point per reading. It never blocks on the
// network. Readings with an unparsable timestamp are reported through
// the error callback and skipped.
func (c *Client) WriteReadings(readings []device.Reading) {
	if !c.IsConnected() {
		return
	}

	for _, r := range readings {
		point, err := ReadingPoint(r)
		if err != nil {
			c.mu.RLock()
			callback := c.onError
			c.mu.RUnlock()
			if callback != nil {
				callback(fmt.Errorf("%w: device %d: %w", ErrWriteFailed, r.DeviceID, err))
			}
			continue
		}
		c.writeAPI.WritePoint(point)
	}
}
