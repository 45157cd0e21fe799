package enocean

import "fmt"

// PacketType defines EnOcean ESP3 packet types
type PacketType byte

const (
	PacketTypeRadioERP1    PacketType = 0x01
	PacketTypeResponse     PacketType = 0x02
	PacketTypeRadioSubTel  PacketType = 0x03
	PacketTypeEvent        PacketType = 0x04
	PacketTypeCommonCmd    PacketType = 0x05
	PacketTypeSmartAckCmd  PacketType = 0x06
	PacketTypeRemoteManCmd PacketType = 0x07
)

// Common Command codes
const (
	CO_WR_RESET         byte = 0x02
	CO_RD_VERSION       byte = 0x03
	CO_RD_IDBASE        byte = 0x08
	CO_WR_REPEATER      byte = 0x09
	CO_WR_WAIT_MATURITY byte = 0x10
)

// Event codes
const (
	CO_READY byte = 0x04
)

// Response return codes
const (
	RET_OK byte = 0x00
)

// RORG (Radio ORG) types
const (
	RORG_RPS byte = 0xF6 // Repeated Switch Communication
	RORG_1BS byte = 0xD5 // 1 Byte Communication
	RORG_4BS byte = 0xA5 // 4 Byte Communication
	RORG_VLD byte = 0xD2 // Variable Length Data
	RORG_UTE byte = 0xD4 // Universal Teach-in
)

// Telegram represents an EnOcean ESP3 packet
type Telegram struct {
	SyncByte     byte
	DataLength   uint16
	OptionalLen  byte
	PacketType   PacketType
	Data         []byte
	OptionalData []byte
	CRC8H        byte
	CRC8D        byte
	Raw          []byte
}

// GetSenderID extracts sender ID from telegram data
func (t *Telegram) GetSenderID() string {
	if len(t.Data) < 5 {
		return ""
	}
	// Sender ID is the 4 bytes before the status byte in radio telegrams
	if t.PacketType == PacketTypeRadioERP1 && len(t.Data) >= 6 {
		return fmt.Sprintf("%02X:%02X:%02X:%02X",
			t.Data[len(t.Data)-5],
			t.Data[len(t.Data)-4],
			t.Data[len(t.Data)-3],
			t.Data[len(t.Data)-2])
	}
	return ""
}

// IsRadio reports whether the telegram is an ERP1 radio telegram.
func (t *Telegram) IsRadio() bool {
	return t.PacketType == PacketTypeRadioERP1
}

// ParseSenderID parses a sender ID string (XX:XX:XX:XX) to bytes
func ParseSenderID(id string) ([]byte, error) {
	// Remove colons
	clean := ""
	for _, c := range id {
		if c != ':' {
			clean += string(c)
		}
	}
	if len(clean) != 8 {
		return nil, fmt.Errorf("invalid sender ID format: %s", id)
	}

	bytes := make([]byte, 4)
	for i := 0; i < 4; i++ {
		_, err := fmt.Sscanf(clean[i*2:i*2+2], "%02x", &bytes[i])
		if err != nil {
			return nil, fmt.Errorf("invalid hex in sender ID: %s", id)
		}
	}
	return bytes, nil
}

// FormatID renders a 4-byte identity as XX:XX:XX:XX.
func FormatID(id []byte) string {
	if len(id) != 4 {
		return ""
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X", id[0], id[1], id[2], id[3])
}
