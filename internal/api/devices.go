package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/powersim/internal/device"
)

// Client-facing messages for rejected requests.
const (
	msgDeviceNotFound = "device not found"
	msgInvalidPower   = "Invalid 'power' value"
	msgMissingPower   = "missing 'power' value"
	msgInvalidBody    = "invalid JSON body"
)

// deviceIDParam parses the {id} path parameter. A malformed id is reported
// as not found, the same as an id no device has.
func deviceIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// handleListDevices returns every device snapshot in registry order.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.registry.List())
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(r)
	if !ok {
		writeNotFound(w, msgDeviceNotFound)
		return
	}

	snap, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, msgDeviceNotFound)
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	s.respond(w, r, http.StatusOK, snap)
}

// handleSetPower switches a device on or off.
//
// Body: {"power": "On"} or {"power": "Off"}. Switching Off resets the
// device's total consumption. Any other value is rejected without touching
// the device.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(r)
	if !ok {
		writeNotFound(w, msgDeviceNotFound)
		return
	}

	var req device.SetPowerRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, device.ErrInvalidPowerState) {
			writeBadRequest(w, msgInvalidPower)
			return
		}
		writeBadRequest(w, msgInvalidBody)
		return
	}
	// The body must hold exactly one JSON value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeBadRequest(w, msgInvalidBody)
		return
	}
	if err := req.Validate(); err != nil {
		if errors.Is(err, device.ErrMissingPower) {
			writeBadRequest(w, msgMissingPower)
			return
		}
		writeBadRequest(w, msgInvalidPower)
		return
	}

	snap, err := s.registry.ChangePower(id, *req.Power, device.SourceAPI)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, msgDeviceNotFound)
			return
		}
		s.logger.Error("failed to set device power", "device_id", id, "error", err)
		writeInternalError(w, "failed to set device power")
		return
	}

	s.respond(w, r, http.StatusOK, snap)
}

// handlePowerLog returns recent power commands for a device, newest first.
//
// Query parameters:
//   - limit: maximum entries to return (default 50, capped at 200)
func (s *Server) handlePowerLog(w http.ResponseWriter, r *http.Request) {
	if s.powerLog == nil {
		writeServiceUnavailable(w, "power log is disabled")
		return
	}

	id, ok := deviceIDParam(r)
	if !ok {
		writeNotFound(w, msgDeviceNotFound)
		return
	}
	if _, err := s.registry.Get(id); err != nil {
		writeNotFound(w, msgDeviceNotFound)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.powerLog.Recent(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to query power log", "device_id", id, "error", err)
		writeInternalError(w, "failed to query power log")
		return
	}
	if entries == nil {
		entries = []device.PowerLogEntry{}
	}

	s.respond(w, r, http.StatusOK, entries)
}
