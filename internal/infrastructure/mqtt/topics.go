package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every simulator topic.
const TopicPrefix = "powersim"

// Topics builds simulator MQTT topics.
//
//	powersim/system/status             online/offline status (retained, LWT)
//	powersim/device/{id}/state         device snapshot (retained)
//	powersim/device/{id}/power/set     inbound power command
type Topics struct{}

// SystemStatus returns the simulator status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceState returns the snapshot topic for one device.
//
// Example: powersim/device/3/state
func (Topics) DeviceState(deviceID int) string {
	return fmt.Sprintf("%s/device/%d/state", TopicPrefix, deviceID)
}

// DevicePowerSet returns the power command topic for one device.
//
// Example: powersim/device/3/power/set
func (Topics) DevicePowerSet(deviceID int) string {
	return fmt.Sprintf("%s/device/%d/power/set", TopicPrefix, deviceID)
}

// AllDevicePowerSet returns the wildcard subscription for power commands.
func (Topics) AllDevicePowerSet() string {
	return TopicPrefix + "/device/+/power/set"
}

// DeviceIDFromTopic extracts the numeric device id from a device topic.
func DeviceIDFromTopic(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != TopicPrefix || parts[1] != "device" {
		return 0, fmt.Errorf("%w: %q is not a device topic", ErrInvalidTopic, topic)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("%w: device id %q: %w", ErrInvalidTopic, parts[2], err)
	}
	return id, nil
}

// PowerSetDeviceID extracts the device id from a power command topic.
// Only the exact form built by DevicePowerSet is accepted.
func PowerSetDeviceID(topic string) (int, error) {
	id, err := DeviceIDFromTopic(topic)
	if err != nil {
		return 0, err
	}
	if topic != (Topics{}).DevicePowerSet(id) {
		return 0, fmt.Errorf("%w: %q is not a power command topic", ErrInvalidTopic, topic)
	}
	return id, nil
}
