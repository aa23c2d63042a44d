package api

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/powersim/internal/device"
	"github.com/nerrad567/powersim/internal/infrastructure/mqtt"
)

// commandQoS is the QoS for the power command subscription.
const commandQoS = 1

// subscribePowerCommands listens on powersim/device/+/power/set and applies
// each command through the registry, exactly like PATCH /devices/{id}.
func (s *Server) subscribePowerCommands() error {
	if s.mqtt == nil {
		return nil // MQTT not configured
	}
	topic := mqtt.Topics{}.AllDevicePowerSet()
	s.logger.Info("subscribing to MQTT power commands", "topic", topic)
	return s.mqtt.Subscribe(topic, commandQoS, s.handlePowerCommand)
}

// handlePowerCommand applies one MQTT power command. Returned errors are
// logged by the MQTT client and the message is dropped.
func (s *Server) handlePowerCommand(topic string, payload []byte) error {
	id, err := mqtt.PowerSetDeviceID(topic)
	if err != nil {
		return err
	}

	var req device.SetPowerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decoding power command for device %d: %w", id, err)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("power command for device %d: %w", id, err)
	}

	if _, err := s.registry.ChangePower(id, *req.Power, device.SourceMQTT); err != nil {
		return fmt.Errorf("power command for device %d: %w", id, err)
	}
	return nil
}

// publishSnapshot publishes the retained state of one device.
func (s *Server) publishSnapshot(snap device.Snapshot) {
	if !s.mqtt.IsConnected() {
		return
	}
	topic := mqtt.Topics{}.DeviceState(snap.ID)
	if err := s.mqtt.PublishJSON(topic, snap, true); err != nil {
		s.logger.Warn("failed to publish device state", "device_id", snap.ID, "error", err)
	}
}

// publishReadings publishes the state of every device that produced a reading.
func (s *Server) publishReadings(readings []device.Reading) {
	if !s.mqtt.IsConnected() {
		return
	}

	ticked := make(map[int]struct{}, len(readings))
	for _, rd := range readings {
		ticked[rd.DeviceID] = struct{}{}
	}
	for _, snap := range s.registry.List() {
		if _, ok := ticked[snap.ID]; ok {
			s.publishSnapshot(snap)
		}
	}
}
