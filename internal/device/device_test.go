package device

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func TestSimulateTick_On(t *testing.T) {
	d := NewDevice(1, "Fridge", 5, time.Minute)

	sample, ok := d.SimulateTick(newSeqSource(0.5), testEpoch)
	require.True(t, ok)

	assert.InDelta(t, 125.0, sample.PowerUsage, 1e-9)
	assert.InDelta(t, 125.0/1000/60, sample.EnergyConsumed, 1e-12)
	assert.Equal(t, "2026-10-16T12:00:00Z", sample.Timestamp)
	assert.Equal(t, 1, d.HistoryLen())
	assert.InDelta(t, sample.EnergyConsumed, d.TotalConsumption(), 1e-12)
}

func TestSimulateTick_AccumulatesTotal(t *testing.T) {
	d := NewDevice(1, "Fridge", 3, time.Minute)
	src := newSeqSource(0.1, 0.7, 0.3, 0.9)

	var want float64
	for i := range 4 {
		before := d.TotalConsumption()
		sample, ok := d.SimulateTick(src, testEpoch.Add(time.Duration(i)*time.Minute))
		require.True(t, ok)
		want += sample.EnergyConsumed

		assert.Greater(t, d.TotalConsumption(), before)
		assert.InDelta(t, before+sample.EnergyConsumed, d.TotalConsumption(), 1e-12)
	}
	assert.InDelta(t, want, d.TotalConsumption(), 1e-12)
	assert.Equal(t, 3, d.HistoryLen())
}

func TestSimulateTick_OffIsNoop(t *testing.T) {
	d := NewDevice(1, "Fridge", 5, time.Minute)
	d.SimulateTick(newSeqSource(0.5), testEpoch)
	require.NoError(t, d.SetPower(PowerOff))

	before := d.Snapshot()
	sample, ok := d.SimulateTick(newSeqSource(0.5), testEpoch.Add(time.Minute))

	assert.False(t, ok)
	assert.Equal(t, ConsumptionSample{}, sample)
	assert.Equal(t, before, d.Snapshot())
}

func TestSimulateTick_EvictsOldestFirst(t *testing.T) {
	d := NewDevice(1, "Fridge", 2, 60*time.Second)
	src := newSeqSource(0.1, 0.2, 0.3)

	var samples []ConsumptionSample
	for i := range 3 {
		s, ok := d.SimulateTick(src, testEpoch.Add(time.Duration(i)*time.Minute))
		require.True(t, ok)
		samples = append(samples, s)
	}

	snap := d.Snapshot()
	require.Len(t, snap.ConsumptionData, 2)
	assert.Equal(t, []ConsumptionSample{samples[1], samples[2]}, snap.ConsumptionData)
}

func TestSimulateTick_HistoryBoundProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for _, maxEntries := range []int{1, 2, 5, 17} {
		d := NewDevice(1, "Freezer", maxEntries, 30*time.Second)
		var all []ConsumptionSample

		for i := range 50 {
			s, ok := d.SimulateTick(rng, testEpoch.Add(time.Duration(i)*time.Second))
			require.True(t, ok)
			all = append(all, s)

			require.LessOrEqual(t, d.HistoryLen(), maxEntries)
		}

		assert.Equal(t, all[len(all)-maxEntries:], d.Snapshot().ConsumptionData)
	}
}

func TestSimulateTick_PowerRange(t *testing.T) {
	tests := []struct {
		name string
		u    float64
		want float64
	}{
		{"lower bound", 0, MinPowerWatts},
		{"midpoint", 0.5, 125},
		{"just below one", 0.999999, 199.99985},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDevice(1, "EV-Charger", 5, time.Minute)
			s, ok := d.SimulateTick(newSeqSource(tt.u), testEpoch)
			require.True(t, ok)
			assert.InDelta(t, tt.want, s.PowerUsage, 1e-6)
		})
	}

	t.Run("misbehaving source stays in range", func(t *testing.T) {
		for _, u := range []float64{1.0, 1.5, -0.5} {
			p := drawPower(newSeqSource(u))
			assert.GreaterOrEqual(t, p, MinPowerWatts)
			assert.Less(t, p, MaxPowerWatts)
		}
	})

	t.Run("seeded source", func(t *testing.T) {
		src := NewSource(42)
		for range 1000 {
			p := drawPower(src)
			require.GreaterOrEqual(t, p, MinPowerWatts)
			require.Less(t, p, MaxPowerWatts)
		}
	})
}

func TestSimulateTick_StampsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	d := NewDevice(1, "Water heater", 5, time.Minute)

	s, ok := d.SimulateTick(newSeqSource(0.5), time.Date(2026, 10, 16, 14, 30, 15, 999, loc))
	require.True(t, ok)
	assert.Equal(t, "2026-10-16T12:30:15Z", s.Timestamp)

	parsed, err := s.Time()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestSetPower(t *testing.T) {
	d := NewDevice(1, "Fridge", 5, time.Minute)
	d.SimulateTick(newSeqSource(0.9), testEpoch)
	require.Positive(t, d.TotalConsumption())

	require.NoError(t, d.SetPower(PowerOff))
	assert.Equal(t, PowerOff, d.Power())
	assert.Zero(t, d.TotalConsumption())
	assert.Equal(t, 1, d.HistoryLen(), "history survives a switch off")

	require.NoError(t, d.SetPower(PowerOff))
	assert.Zero(t, d.TotalConsumption())

	require.NoError(t, d.SetPower(PowerOn))
	assert.Equal(t, PowerOn, d.Power())
	assert.Zero(t, d.TotalConsumption())
}

func TestSetPower_On_KeepsTotal(t *testing.T) {
	d := NewDevice(1, "Fridge", 5, time.Minute)
	d.SimulateTick(newSeqSource(0.9), testEpoch)
	total := d.TotalConsumption()

	require.NoError(t, d.SetPower(PowerOn))
	assert.Equal(t, total, d.TotalConsumption())
}

func TestSetPower_Invalid(t *testing.T) {
	d := NewDevice(1, "Fridge", 5, time.Minute)

	err := d.SetPower(PowerState("Sleeping"))
	require.ErrorIs(t, err, ErrInvalidPowerState)
	assert.Equal(t, PowerOn, d.Power())
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	d := NewDevice(3, "EV-Charger", 5, time.Minute)
	d.SimulateTick(newSeqSource(0.5), testEpoch)

	snap := d.Snapshot()
	snap.ConsumptionData[0].PowerUsage = -1

	assert.InDelta(t, 125.0, d.Snapshot().ConsumptionData[0].PowerUsage, 1e-9)
}

func TestSnapshot_EmptyHistoryNotNil(t *testing.T) {
	snap := NewDevice(1, "Fridge", 5, time.Minute).Snapshot()
	assert.NotNil(t, snap.ConsumptionData)
	assert.Empty(t, snap.ConsumptionData)
}

func TestNewDevice_ClampsCapacity(t *testing.T) {
	d := NewDevice(1, "Fridge", 0, time.Minute)
	assert.Equal(t, 1, d.MaxEntries())
}

func TestEnergyKWh(t *testing.T) {
	tests := []struct {
		watts    float64
		interval time.Duration
		want     float64
	}{
		{1000, time.Hour, 1},
		{100, time.Minute, 100.0 / 1000 / 60},
		{200, 30 * time.Second, 200.0 / 1000 / 120},
		{50, 0, 0},
	}

	for _, tt := range tests {
		got := EnergyKWh(tt.watts, tt.interval)
		assert.InDelta(t, tt.want, got, 1e-12, "EnergyKWh(%v, %v)", tt.watts, tt.interval)
		assert.GreaterOrEqual(t, got, 0.0)
	}
}
