// Package mqtt connects the power simulator to an MQTT broker.
//
// The simulator publishes a retained snapshot of every device after each
// tick and each power change, and accepts power commands from the bus:
//
//	powersim/system/status             online/offline (retained, LWT)
//	powersim/device/{id}/state         device snapshot (retained)
//	powersim/device/{id}/power/set     {"power":"On"|"Off"}
//
// This package manages:
//   - Connection with auto-reconnect and Last Will and Testament
//   - Publishing with QoS validation and a payload size cap
//   - Subscriptions that survive reconnects
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.DeviceState(1), snapshot, true)
//
// Use TLS (cfg.Broker.TLS) and credentials for any broker outside localhost.
package mqtt
