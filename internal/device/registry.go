package device

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry and Simulator.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PowerChangeListener is called after a power command has been applied.
type PowerChangeListener func(change PowerChange)

// Registry is the ordered device list shared by the simulator and the
// command handlers.
//
// A single mutex guards every device. Work done under it is in-memory
// only; listeners run after it is released.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.Mutex
	devices []*Device

	listenersMu sync.RWMutex
	listeners   []PowerChangeListener

	now    func() time.Time
	logger Logger
}

// NewRegistry creates a registry holding devices in the given order.
// Returns ErrDeviceExists if two devices share an ID.
func NewRegistry(devices ...*Device) (*Registry, error) {
	seen := make(map[int]struct{}, len(devices))
	for _, d := range devices {
		if _, dup := seen[d.id]; dup {
			return nil, fmt.Errorf("%w: id %d", ErrDeviceExists, d.id)
		}
		seen[d.id] = struct{}{}
	}

	return &Registry{
		devices: append([]*Device(nil), devices...),
		now:     time.Now,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnPowerChange registers a listener for accepted power commands.
func (r *Registry) OnPowerChange(l PowerChangeListener) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenersMu.Unlock()
}

// WithAll runs fn with exclusive access to every device, in registry order.
// fn must not retain the slice or the devices after it returns.
func WithAll[T any](r *Registry, fn func(devices []*Device) T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.devices)
}

// WithOne runs fn with exclusive access to the device with the given id.
// ok is false, and fn is not called, when no device matches.
func WithOne[T any](r *Registry, id int, fn func(d *Device) T) (result T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.id == id {
			return fn(d), true
		}
	}
	return result, false
}

// List returns snapshots of all devices in registry order.
func (r *Registry) List() []Snapshot {
	return WithAll(r, func(devices []*Device) []Snapshot {
		out := make([]Snapshot, len(devices))
		for i, d := range devices {
			out[i] = d.Snapshot()
		}
		return out
	})
}

// Get returns a snapshot of one device.
// Returns ErrDeviceNotFound if the id is unknown.
func (r *Registry) Get(id int) (Snapshot, error) {
	snap, ok := WithOne(r, id, (*Device).Snapshot)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}
	return snap, nil
}

// SetPower switches one device and returns its new snapshot.
// Listeners are not notified; use ChangePower for commands.
func (r *Registry) SetPower(id int, state PowerState) (Snapshot, error) {
	if !state.IsValid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidPowerState, state)
	}

	snap, ok := WithOne(r, id, func(d *Device) Snapshot {
		_ = d.SetPower(state) //nolint:errcheck // state validated above
		return d.Snapshot()
	})
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}
	return snap, nil
}

// ChangePower applies a power command from source and, once the lock is
// released, notifies every PowerChangeListener.
func (r *Registry) ChangePower(id int, state PowerState, source string) (Snapshot, error) {
	snap, err := r.SetPower(id, state)
	if err != nil {
		return Snapshot{}, err
	}

	r.logger.Info("device power changed",
		"device_id", id,
		"power", string(state),
		"source", source,
	)

	r.notify(PowerChange{
		Device:    snap,
		Source:    source,
		ChangedAt: r.now().UTC(),
	})
	return snap, nil
}

func (r *Registry) notify(change PowerChange) {
	r.listenersMu.RLock()
	listeners := append([]PowerChangeListener(nil), r.listeners...)
	r.listenersMu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}

// Tick advances every device by one sample, in registry order, and returns
// a Reading for each device that was On.
func (r *Registry) Tick(src Source, now time.Time) []Reading {
	return WithAll(r, func(devices []*Device) []Reading {
		readings := make([]Reading, 0, len(devices))
		for _, d := range devices {
			sample, ok := d.SimulateTick(src, now)
			if !ok {
				continue
			}
			readings = append(readings, Reading{
				DeviceID:         d.id,
				DeviceName:       d.name,
				Sample:           sample,
				TotalConsumption: d.total,
			})
		}
		return readings
	})
}

// Count returns the number of devices.
func (r *Registry) Count() int {
	return WithAll(r, func(devices []*Device) int { return len(devices) })
}

// Stats returns device counts by power state and the fleet total in kWh.
func (r *Registry) Stats() Stats {
	return WithAll(r, func(devices []*Device) Stats {
		s := Stats{Devices: len(devices)}
		for _, d := range devices {
			if d.power == PowerOn {
				s.On++
			} else {
				s.Off++
			}
			s.TotalConsumption += d.total
		}
		return s
	})
}
