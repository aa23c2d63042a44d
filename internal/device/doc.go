// Package device holds the simulated appliances and the loop that drives them.
//
// # Architecture
//
//	┌──────────────┐  tick   ┌──────────────┐  readings   ┌─────────────────┐
//	│  Simulator   │────────▶│   Registry   │────────────▶│ tick listeners  │
//	│(simulator.go)│         │ (registry.go)│             │ ws / mqtt / tsdb│
//	└──────────────┘         │  one mutex   │             └─────────────────┘
//	                         │  []*Device   │  changes    ┌─────────────────┐
//	  HTTP / MQTT ──────────▶│              │────────────▶│ power listeners │
//	  power commands         └──────────────┘             │ ws / mqtt / log │
//	                                                      └─────────────────┘
//
// Every Device is owned by the Registry and is only touched while the
// Registry lock is held. Listeners are always called after the lock has
// been released, so they may call back into the Registry.
//
// # Key Types
//
//   - Device: one appliance with its power state, running total and
//     bounded consumption history
//   - Registry: the ordered device list behind a single sync.Mutex
//   - Simulator: the periodic tick loop
//   - Source: the random generator used for synthetic power draw
//   - SQLitePowerLogRepository: audit trail of accepted power commands
//
// # Usage
//
//	reg, err := device.NewRegistry(device.DefaultRoster(5, time.Minute)...)
//	if err != nil {
//	    return err
//	}
//	sim := device.NewSimulator(reg, time.Minute, device.WithLogger(log))
//	sim.OnTick(func(readings []device.Reading) { ... })
//	go sim.Run(ctx)
//
//	snap, err := reg.ChangePower(2, device.PowerOff, device.SourceAPI)
package device
