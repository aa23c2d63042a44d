package device

import "time"

// rosterNames is the fixed fleet, in registry order. IDs start at 1.
var rosterNames = []string{
	"Fridge",
	"Freezer",
	"EV-Charger",
	"Water heater",
	"Bathroom floor heater",
}

// DefaultRoster builds the five built-in devices, all switched On.
func DefaultRoster(maxEntries int, interval time.Duration) []*Device {
	devices := make([]*Device, 0, len(rosterNames))
	for i, name := range rosterNames {
		devices = append(devices, NewDevice(i+1, name, maxEntries, interval))
	}
	return devices
}
