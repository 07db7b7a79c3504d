package device

import (
	"errors"
	"time"
)

// Device represents a registered machine that can be woken or shut down.
type Device struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	MACAddress    string     `json:"mac_address"`
	IPAddress     string     `json:"ip_address,omitempty"`
	BroadcastAddr string     `json:"broadcast_addr"`
	Icon          string     `json:"icon,omitempty"`
	IsOnline      bool       `json:"is_online"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// defaultBroadcastAddr is used when a device doesn't specify one.
const defaultBroadcastAddr = "255.255.255.255"

// Sentinel errors for device operations.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoIPAddress    = errors.New("device has no IP address")
)
