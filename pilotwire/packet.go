package pilotwire

import (
	"errors"
	"fmt"
)

// Telegram constants for the D2-01-0C profile.
const (
	RORGVLD byte = 0xD2 // Variable Length Data
	RORGUTE byte = 0xD4 // Universal Teach-in

	// Pilot wire commands are sent as a full byte, not shifted into the
	// upper nibble with a channel field. Both encodings exist in the wild
	// for CMD 0x08; the direct-byte form is the one verified against an
	// interoperating peer and is the only one this codec transmits.
	CmdSetPilotWireMode      byte = 0x08
	CmdPilotWireModeResponse byte = 0x0A

	// EEP D2-01-0C identifier bytes used in the UTE teach-in telegram.
	EEPRORG byte = 0xD2
	EEPFunc byte = 0x01
	EEPType byte = 0x0C

	// UTE byte 1: teach-in request, bidirectional.
	uteTeachInRequest byte = 0x20

	// DefaultManufacturerID is NodOn, the manufacturer of the reference
	// pilot wire module. The field is nominally 11 bits wide but the
	// codec only truncates to 16.
	DefaultManufacturerID uint16 = 0x0046
)

// ErrTelegramTooShort is returned when a decode input is missing the
// mandatory leading fields.
var ErrTelegramTooShort = errors.New("telegram too short")

// ErrInvalidPreset is returned when a caller requests a preset outside the
// five recognized values.
var ErrInvalidPreset = errors.New("unsupported preset mode")

// DeviceID is a 4-byte EnOcean identity, used both for the controlling
// sender and for the actuator being addressed.
type DeviceID [4]byte

func (id DeviceID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X", id[0], id[1], id[2], id[3])
}

// ParseDeviceID parses an identity in "XX:XX:XX:XX" form (colons optional).
func ParseDeviceID(s string) (DeviceID, error) {
	clean := make([]byte, 0, 8)
	for _, c := range []byte(s) {
		if c != ':' {
			clean = append(clean, c)
		}
	}
	var id DeviceID
	if len(clean) != 8 {
		return id, fmt.Errorf("invalid device ID format: %s", s)
	}
	for i := 0; i < 4; i++ {
		if _, err := fmt.Sscanf(string(clean[i*2:i*2+2]), "%02x", &id[i]); err != nil {
			return id, fmt.Errorf("invalid hex in device ID: %s", s)
		}
	}
	return id, nil
}

// BuildSetModePacket builds the Set Pilot Wire Mode telegram (CMD 0x08).
// The mode is masked to its low nibble unconditionally; out-of-range values
// are truncated, not rejected, since the actuator itself never echoes
// validation errors.
func BuildSetModePacket(sender DeviceID, mode Mode) []byte {
	packet := make([]byte, 0, 8)
	packet = append(packet, RORGVLD, CmdSetPilotWireMode, byte(mode)&0x0F)
	packet = append(packet, sender[:]...)
	packet = append(packet, 0x00) // status, always zero on send
	return packet
}

// ModeResponse holds the fields of a decoded Pilot Wire Mode Response
// (CMD 0x0A). SenderID is nil when the telegram was too short to carry
// one; callers needing the sender must check HasSender.
type ModeResponse struct {
	RORG     byte
	Cmd      byte
	Mode     Mode
	SenderID []byte
}

// HasSender reports whether the response carried a sender identity.
func (r ModeResponse) HasSender() bool {
	return len(r.SenderID) == 4
}

// ParseModeResponse decodes a pilot wire mode response payload. It performs
// no RORG or command validation beyond field extraction; classification is
// the Dispatcher's job. The only failure is a telegram shorter than the
// three mandatory leading bytes.
func ParseModeResponse(data []byte) (ModeResponse, error) {
	if len(data) < 3 {
		return ModeResponse{}, fmt.Errorf("%w: %d bytes", ErrTelegramTooShort, len(data))
	}

	resp := ModeResponse{
		RORG: data[0],
		Cmd:  data[1] & 0x0F,
		Mode: Mode(data[2] & 0x0F),
	}
	if len(data) >= 7 {
		resp.SenderID = make([]byte, 4)
		copy(resp.SenderID, data[3:7])
	}
	return resp, nil
}

// BuildUTETeachInPacket builds the UTE teach-in request telegram that pairs
// a sender identity with the D2-01-0C profile. The manufacturer field is
// big-endian; values wider than 16 bits are silently truncated.
func BuildUTETeachInPacket(sender DeviceID, manufacturerID uint16) []byte {
	packet := make([]byte, 0, 12)
	packet = append(packet,
		RORGUTE,
		uteTeachInRequest,
		EEPRORG,
		EEPFunc,
		EEPType,
		byte(manufacturerID>>8),
		byte(manufacturerID),
	)
	packet = append(packet, sender[:]...)
	packet = append(packet, 0x00) // status
	return packet
}
