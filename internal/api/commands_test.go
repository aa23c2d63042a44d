package api

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/powersim/internal/device"
	"github.com/nerrad567/powersim/internal/infrastructure/mqtt"
)

func TestHandlePowerCommand(t *testing.T) {
	srv, reg := testServer(t)
	tick(t, reg)

	topic := mqtt.Topics{}.DevicePowerSet(3)
	require.NoError(t, srv.handlePowerCommand(topic, []byte(`{"power":"Off"}`)))

	snap, err := reg.Get(3)
	require.NoError(t, err)
	assert.Equal(t, device.PowerOff, snap.Power)
	assert.Zero(t, snap.TotalConsumption)
}

func TestHandlePowerCommand_RecordsMQTTSource(t *testing.T) {
	srv, reg := testServer(t)

	var got []device.PowerChange
	reg.OnPowerChange(func(c device.PowerChange) { got = append(got, c) })

	require.NoError(t, srv.handlePowerCommand(mqtt.Topics{}.DevicePowerSet(1), []byte(`{"power":"Off"}`)))
	require.Len(t, got, 1)
	assert.Equal(t, device.SourceMQTT, got[0].Source)
}

func TestHandlePowerCommand_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    error
	}{
		{"invalid value", mqtt.Topics{}.DevicePowerSet(1), `{"power":"Sleeping"}`, device.ErrInvalidPowerState},
		{"missing value", mqtt.Topics{}.DevicePowerSet(1), `{}`, device.ErrMissingPower},
		{"not json", mqtt.Topics{}.DevicePowerSet(1), `Off`, nil},
		{"unknown device", mqtt.Topics{}.DevicePowerSet(9999), `{"power":"Off"}`, device.ErrDeviceNotFound},
		{"malformed topic", "powersim/device/abc/power/set", `{"power":"Off"}`, mqtt.ErrInvalidTopic},
		{"state topic", mqtt.Topics{}.DeviceState(1), `{"power":"Off"}`, mqtt.ErrInvalidTopic},
		{"padded id", "powersim/device/01/power/set", `{"power":"Off"}`, mqtt.ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, reg := testServer(t)
			tick(t, reg)
			before := reg.List()

			err := srv.handlePowerCommand(tt.topic, []byte(tt.payload))
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "error = %v, want %v", err, tt.want)
			}

			assert.Equal(t, before, reg.List(), "rejected command must not change any device")
		})
	}
}

func TestPublish_NoopWithoutMQTT(t *testing.T) {
	srv, reg := testServer(t)

	assert.NotPanics(t, func() {
		srv.publishSnapshot(device.Snapshot{ID: 1})
		srv.publishReadings(reg.Tick(device.NewSource(1), time.Now()))
	})
	assert.NoError(t, srv.subscribePowerCommands())
}
