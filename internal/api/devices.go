package api

import (
	"errors"
	"net/http"

	"github.com/fleetwake/fleetwake/internal/agent"
	"github.com/fleetwake/fleetwake/internal/audit"
	"github.com/fleetwake/fleetwake/internal/device"
	"github.com/fleetwake/fleetwake/internal/wol"
)

// handleListDevices returns the device registry. Any authenticated
// account may list devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.deps.Devices.List(r.Context())
	if err != nil {
		writeDatabaseError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type createDeviceRequest struct {
	Name          string `json:"name"`
	MACAddress    string `json:"mac_address"`
	IPAddress     string `json:"ip_address"`
	BroadcastAddr string `json:"broadcast_addr"`
	Icon          string `json:"icon"`
}

// handleCreateDevice registers a machine. Admin only.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	if req.Name == "" {
		writeBadRequest(w, "Name is required")
		return
	}
	if _, err := wol.ParseMAC(req.MACAddress); err != nil {
		writeBadRequest(w, "Invalid MAC address")
		return
	}

	d := &device.Device{
		Name:          req.Name,
		MACAddress:    req.MACAddress,
		IPAddress:     req.IPAddress,
		BroadcastAddr: req.BroadcastAddr,
		Icon:          req.Icon,
	}
	if err := s.deps.Devices.Create(r.Context(), d); err != nil {
		writeDatabaseError(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Device created", "device": d})
}

// handleUpdateDevice applies a partial update. Omitted fields keep
// their stored values. Admin only.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid device ID")
		return
	}

	var patch device.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if patch.MACAddress != nil {
		if _, err := wol.ParseMAC(*patch.MACAddress); err != nil {
			writeBadRequest(w, "Invalid MAC address")
			return
		}
	}

	d, err := s.deps.Devices.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "Device not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Device updated", "device": d})
}

// handleDeleteDevice removes a device from the registry. Admin only.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid device ID")
		return
	}

	if err := s.deps.Devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "Device not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Device deleted"})
}

// handleWake sends a Wake-on-LAN magic packet to a device.
func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid device ID")
		return
	}

	d, err := s.deps.Devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "Device not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	if err := wol.Wake(d.MACAddress, d.BroadcastAddr); err != nil {
		if errors.Is(err, wol.ErrInvalidMAC) {
			writeBadRequest(w, "Invalid MAC address")
			return
		}
		s.logger.Error("sending magic packet", "device_id", d.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send magic packet")
		return
	}

	s.publishCommand(r, d, "wake")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Magic packet sent"})
}

// handleShutdown asks the agent on a device to power it down.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid device ID")
		return
	}

	d, err := s.deps.Devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "Device not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	if d.IPAddress == "" {
		writeBadRequest(w, "Device has no IP address")
		return
	}

	if err := s.deps.Agent.Shutdown(r.Context(), d.IPAddress); err != nil {
		if errors.Is(err, agent.ErrAgentFailed) {
			writeError(w, http.StatusBadGateway, "Shutdown agent unreachable")
			return
		}
		s.logger.Error("requesting shutdown", "device_id", d.ID, "error", err)
		writeDatabaseError(w)
		return
	}

	s.publishCommand(r, d, "shutdown")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Shutdown requested"})
}

// publishCommand records a wake or shutdown command in the audit trail
// and fans it out to the optional event and history sinks.
func (s *Server) publishCommand(r *http.Request, d *device.Device, command string) {
	username := userFrom(r.Context()).Username

	var action string
	switch command {
	case "wake":
		action = audit.ActionWake
	default:
		action = audit.ActionShutdown
	}

	s.recordAudit(r.Context(), &audit.Entry{
		Action:     action,
		EntityType: audit.EntityDevice,
		EntityID:   itoa(d.ID),
		Username:   username,
		Details:    map[string]any{"device_name": d.Name},
	})

	if s.deps.Events != nil {
		if err := s.deps.Events.PublishCommand(d.ID, command, username); err != nil {
			s.logger.Warn("publishing command event",
				"device_id", d.ID, "command", command, "error", err)
		}
	}
	if s.deps.History != nil {
		s.deps.History.WriteCommandSample(d.ID, command)
	}
}
