package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoster(t *testing.T) {
	devices := DefaultRoster(5, time.Minute)
	require.Len(t, devices, 5)

	want := []string{"Fridge", "Freezer", "EV-Charger", "Water heater", "Bathroom floor heater"}
	for i, d := range devices {
		assert.Equal(t, i+1, d.ID())
		assert.Equal(t, want[i], d.Name())
		assert.Equal(t, PowerOn, d.Power())
		assert.Zero(t, d.TotalConsumption())
		assert.Equal(t, 5, d.MaxEntries())
	}

	_, err := NewRegistry(devices...)
	require.NoError(t, err)
}
