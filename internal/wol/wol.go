// Package wol builds and sends Wake-on-LAN magic packets.
package wol

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// wolPort is the conventional Wake-on-LAN UDP port (discard).
const wolPort = 9

const (
	macBytes          = 6
	macRepetitions    = 16
	magicPacketLength = macBytes + macBytes*macRepetitions // 102
)

// ErrInvalidMAC reports a MAC address that could not be parsed.
var ErrInvalidMAC = errors.New("invalid MAC address")

// ParseMAC parses a 6-byte hardware address with ":" or "-" separators.
func ParseMAC(s string) (net.HardwareAddr, error) {
	normalized := strings.ReplaceAll(s, "-", ":")
	hw, err := net.ParseMAC(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	if len(hw) != macBytes {
		return nil, fmt.Errorf("%w: %q is not a 6-byte address", ErrInvalidMAC, s)
	}
	return hw, nil
}

// MagicPacket builds the 102-byte wake frame: six 0xFF bytes followed
// by the target MAC repeated sixteen times.
func MagicPacket(mac net.HardwareAddr) []byte {
	packet := make([]byte, 0, magicPacketLength)
	for range macBytes {
		packet = append(packet, 0xFF)
	}
	for range macRepetitions {
		packet = append(packet, mac...)
	}
	return packet
}

// Wake parses the MAC, builds a magic packet, and sends it over UDP to
// the broadcast address on port 9.
func Wake(macAddr, broadcastAddr string) error {
	mac, err := ParseMAC(macAddr)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(broadcastAddr, fmt.Sprintf("%d", wolPort))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(MagicPacket(mac)); err != nil {
		return fmt.Errorf("sending magic packet: %w", err)
	}
	return nil
}
