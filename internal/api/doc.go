// Package api implements the HTTP REST API and WebSocket server for the
// power simulator.
//
// This package provides:
//   - REST endpoints to list devices, read one device and switch its power
//   - The power-change audit trail per device (when the SQLite log is enabled)
//   - A WebSocket hub broadcasting tick readings and power changes
//   - The MQTT bridge: power commands in, retained device state out
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, gzip)
//
// # Routes
//
//	GET       /health
//	GET       /metrics
//	GET       /ws
//	GET       /devices
//	GET       /devices/{id}
//	PATCH/PUT /devices/{id}            {"power":"On"|"Off"}
//	GET       /devices/{id}/power-log  ?limit=
//
// A malformed or unknown {id} answers 404. A body that is not a single JSON
// value, lacks "power", or carries a value other than "On" or "Off" answers
// 400 and leaves the device untouched.
//
// # Graceful Degradation
//
// MQTT and the audit log are optional. Without MQTT the HTTP and WebSocket
// surfaces work unchanged; without the audit log /power-log answers 503.
// Dependencies passed in Deps.Checks are checked by /health, which reports
// "degraded" with a 503 while any of them fails.
//
// The server follows the same lifecycle as the infrastructure components:
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil {
//	    return err // address in use, etc.
//	}
//	defer server.Close()
package api
