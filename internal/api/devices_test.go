package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/powersim/internal/device"
)

// tick advances the registry once with a fixed seed.
func tick(t *testing.T, reg *device.Registry) {
	t.Helper()
	readings := reg.Tick(device.NewSource(1), time.Now())
	require.NotEmpty(t, readings)
}

func decodeSnapshot(t *testing.T, body []byte) device.Snapshot {
	t.Helper()
	var snap device.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap), "body: %s", body)
	return snap
}

// ─── List and Get ──────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var devices []device.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 5)

	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
		assert.Equal(t, i+1, d.ID)
		assert.Equal(t, device.PowerOn, d.Power)
		assert.NotNil(t, d.ConsumptionData)
	}
	assert.Equal(t, []string{"Fridge", "Freezer", "EV-Charger", "Water heater", "Bathroom floor heater"}, names)
}

func TestListDevices_WireFormat(t *testing.T) {
	srv, reg := testServer(t)
	tick(t, reg)

	w := do(t, srv, http.MethodGet, "/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.NotEmpty(t, raw)

	first := raw[0]
	for _, key := range []string{"id", "name", "power", "total_consumption", "consumption_data"} {
		assert.Contains(t, first, key)
	}
	samples, ok := first["consumption_data"].([]any)
	require.True(t, ok)
	require.Len(t, samples, 1)
	sample := samples[0].(map[string]any)
	for _, key := range []string{"timestamp", "power_usage", "energy_consumed"} {
		assert.Contains(t, sample, key)
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/devices/3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w.Body.Bytes())
	assert.Equal(t, 3, snap.ID)
	assert.Equal(t, "EV-Charger", snap.Name)
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown id", "/devices/9999"},
		{"zero id", "/devices/0"},
		{"malformed id", "/devices/abc"},
		{"negative id", "/devices/-1"},
		{"float id", "/devices/1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, ErrCodeNotFound, decodeError(t, w).Code)
		})
	}
}

// ─── Set Power ─────────────────────────────────────────────────────

func TestSetPower_OffResetsTotal(t *testing.T) {
	srv, reg := testServer(t)
	tick(t, reg)

	before, err := reg.Get(1)
	require.NoError(t, err)
	require.Greater(t, before.TotalConsumption, 0.0)

	w := do(t, srv, http.MethodPatch, "/devices/1", []byte(`{"power":"Off"}`))
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w.Body.Bytes())
	assert.Equal(t, device.PowerOff, snap.Power)
	assert.Zero(t, snap.TotalConsumption)
	assert.Len(t, snap.ConsumptionData, 1, "history survives a power change")

	after, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, snap, after)
}

func TestSetPower_PutIsAlias(t *testing.T) {
	srv, reg := testServer(t)

	w := do(t, srv, http.MethodPut, "/devices/2", []byte(`{"power":"Off"}`))
	require.Equal(t, http.StatusOK, w.Code)

	got, err := reg.Get(2)
	require.NoError(t, err)
	assert.Equal(t, device.PowerOff, got.Power)
}

func TestSetPower_OnKeepsTotal(t *testing.T) {
	srv, reg := testServer(t)
	tick(t, reg)

	before, err := reg.Get(4)
	require.NoError(t, err)

	w := do(t, srv, http.MethodPatch, "/devices/4", []byte(`{"power":"On"}`))
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w.Body.Bytes())
	assert.Equal(t, device.PowerOn, snap.Power)
	assert.Equal(t, before.TotalConsumption, snap.TotalConsumption)
}

func TestSetPower_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unknown value", `{"power":"Sleeping"}`, msgInvalidPower},
		{"lowercase value", `{"power":"off"}`, msgInvalidPower},
		{"numeric value", `{"power":1}`, msgInvalidPower},
		{"missing field", `{}`, msgMissingPower},
		{"null value", `{"power":null}`, msgMissingPower},
		{"not json", `power=Off`, msgInvalidBody},
		{"empty body", ``, msgInvalidBody},
		{"trailing text", `{"power":"Off"} trailing`, msgInvalidBody},
		{"second value", `{"power":"Off"}{"power":"On"}`, msgInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, reg := testServer(t)
			tick(t, reg)
			before, err := reg.Get(1)
			require.NoError(t, err)

			w := do(t, srv, http.MethodPatch, "/devices/1", []byte(tt.body))
			require.Equal(t, http.StatusBadRequest, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, ErrCodeBadRequest, e.Code)
			assert.Equal(t, tt.message, e.Message)

			after, err := reg.Get(1)
			require.NoError(t, err)
			assert.Equal(t, before, after, "rejected command must not change the device")
		})
	}
}

func TestSetPower_TrailingWhitespaceAccepted(t *testing.T) {
	srv, reg := testServer(t)

	w := do(t, srv, http.MethodPatch, "/devices/1", []byte("{\"power\":\"Off\"}\n\t "))
	require.Equal(t, http.StatusOK, w.Code)

	got, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, device.PowerOff, got.Power)
}

func TestSetPower_NotFound(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown id", "/devices/9999", `{"power":"Off"}`},
		{"malformed id", "/devices/fridge", `{"power":"Off"}`},
		{"malformed id and bad body", "/devices/fridge", `{"power":"Sleeping"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPatch, tt.path, []byte(tt.body))
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestSetPower_BadBodyBeatsUnknownID(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodPatch, "/devices/9999", []byte(`{"power":"Sleeping"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetPower_BroadcastsChange(t *testing.T) {
	srv, _ := testServer(t)
	srv.attachListeners()

	client := &WSClient{
		hub:           srv.hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelPowerChanged: {}},
	}
	srv.hub.Register(client)

	w := do(t, srv, http.MethodPatch, "/devices/5", []byte(`{"power":"Off"}`))
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case data := <-client.send:
		var msg struct {
			EventType string             `json:"event_type"`
			Payload   device.PowerChange `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, ChannelPowerChanged, msg.EventType)
		assert.Equal(t, 5, msg.Payload.Device.ID)
		assert.Equal(t, device.PowerOff, msg.Payload.Device.Power)
		assert.Equal(t, device.SourceAPI, msg.Payload.Source)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for power change broadcast")
	}
}

// ─── Power Log ─────────────────────────────────────────────────────

func TestPowerLog_Disabled(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/devices/1/power-log", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrCodeUnavailable, decodeError(t, w).Code)
}

func TestPowerLog_RecordsChangesNewestFirst(t *testing.T) {
	srv, _ := testServerWithPowerLog(t)

	for _, body := range []string{`{"power":"Off"}`, `{"power":"On"}`} {
		w := do(t, srv, http.MethodPatch, "/devices/1", []byte(body))
		require.Equal(t, http.StatusOK, w.Code)
	}
	// A rejected command is never recorded.
	w := do(t, srv, http.MethodPatch, "/devices/1", []byte(`{"power":"Sleeping"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/devices/1/power-log", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []device.PowerLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, device.PowerOn, entries[0].Power)
	assert.Equal(t, device.PowerOff, entries[1].Power)
	assert.Equal(t, "Fridge", entries[0].DeviceName)
	assert.Equal(t, device.SourceAPI, entries[0].Source)

	w = do(t, srv, http.MethodGet, "/devices/1/power-log?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

func TestPowerLog_EmptyIsArray(t *testing.T) {
	srv, _ := testServerWithPowerLog(t)

	w := do(t, srv, http.MethodGet, "/devices/2/power-log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPowerLog_Errors(t *testing.T) {
	srv, _ := testServerWithPowerLog(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown device", "/devices/9999/power-log", http.StatusNotFound},
		{"malformed device", "/devices/x/power-log", http.StatusNotFound},
		{"bad limit", "/devices/1/power-log?limit=ten", http.StatusBadRequest},
		{"zero limit", "/devices/1/power-log?limit=0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
