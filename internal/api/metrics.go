package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          MQTTMetrics        `json:"mqtt"`
	Simulation    *SimulationMetrics `json:"simulation,omitempty"`
	Devices       DeviceMetrics      `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled       bool `json:"enabled"`
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

// SimulationMetrics reports progress of the tick loop.
type SimulationMetrics struct {
	State           string  `json:"state"`
	Ticks           uint64  `json:"ticks"`
	LastTick        string  `json:"last_tick,omitempty"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// DeviceMetrics summarises the device fleet.
type DeviceMetrics struct {
	Total            int     `json:"total"`
	On               int     `json:"on"`
	Off              int     `json:"off"`
	TotalConsumption float64 `json:"total_consumption_kwh"`
}

// handleMetrics returns runtime, simulation and fleet metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		MQTT: MQTTMetrics{
			Enabled:       s.mqtt != nil,
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		},
	}

	if s.simulator != nil {
		st := s.simulator.Stats()
		metrics.Simulation = &SimulationMetrics{
			State:           st.State,
			Ticks:           st.Ticks,
			IntervalSeconds: st.Interval.Seconds(),
		}
		if !st.LastTick.IsZero() {
			metrics.Simulation.LastTick = st.LastTick.UTC().Format(time.RFC3339)
		}
	}

	fleet := s.registry.Stats()
	metrics.Devices = DeviceMetrics{
		Total:            fleet.Devices,
		On:               fleet.On,
		Off:              fleet.Off,
		TotalConsumption: fleet.TotalConsumption,
	}

	s.respond(w, r, http.StatusOK, metrics)
}
