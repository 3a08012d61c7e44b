// Package tunnel implements the reverse TCP multiplexer ("lasna"): a
// device-facing control/data port and a client-facing HTTP port, bridged
// by subdomain-decoded device ids and one-shot session handoff.
package tunnel

import "github.com/talebox/slepau/internal/common/proquint"

// DeviceID opaquely identifies one connected device, rendered as a single
// proquint word.
type DeviceID uint16

func (d DeviceID) String() string { return proquint.EncodeUint16(uint16(d)) }

// ParseDeviceID decodes a single proquint word into a DeviceID.
func ParseDeviceID(s string) (DeviceID, error) {
	v, err := proquint.DecodeUint16(s)
	if err != nil {
		return 0, err
	}
	return DeviceID(v), nil
}

// SessionID opaquely identifies one pending or active data-plane handoff,
// rendered as a two-word hyphenated proquint.
type SessionID uint32

func (s SessionID) String() string { return proquint.EncodeUint32(uint32(s)) }

// ParseSessionID decodes a two-word proquint into a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	v, err := proquint.DecodeUint32(s)
	if err != nil {
		return 0, err
	}
	return SessionID(v), nil
}

// NewSessionID mints a random session id.
func NewSessionID() SessionID { return SessionID(proquint.RandomUint32()) }
