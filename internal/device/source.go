package device

import (
	"math"
	"math/rand/v2"
	"time"
)

// Power draw bounds in watts. Generated values fall in [MinPowerWatts, MaxPowerWatts).
const (
	MinPowerWatts = 50.0
	MaxPowerWatts = 200.0
)

// Source yields uniformly distributed values in [0, 1).
//
// Implementations need not be safe for concurrent use; the Registry only
// calls a Source while holding its lock.
type Source interface {
	Float64() float64
}

// NewSource returns a PCG generator seeded with seed.
// A zero seed picks one from the current time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := uint64(seed) //nolint:gosec // bit pattern reuse is fine for a seed
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// drawPower maps a Source value onto the power range.
func drawPower(src Source) float64 {
	p := MinPowerWatts + src.Float64()*(MaxPowerWatts-MinPowerWatts)
	if p >= MaxPowerWatts {
		p = math.Nextafter(MaxPowerWatts, MinPowerWatts)
	}
	if p < MinPowerWatts {
		p = MinPowerWatts
	}
	return p
}

// EnergyKWh returns the energy of a constant draw of powerWatts held for interval.
//
//	kWh = W / 1000 * interval_hours
//
// The /1000 converts watts to kilowatts so the result is a true kWh figure.
// Variants that divide the interval by 3600 twice, or read it as minutes,
// are not used.
func EnergyKWh(powerWatts float64, interval time.Duration) float64 {
	return powerWatts / 1000 * interval.Hours()
}
