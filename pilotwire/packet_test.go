package pilotwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSetModePacket(t *testing.T) {
	sender := DeviceID{0xFF, 0xD9, 0x04, 0x81}

	tests := []struct {
		name string
		mode Mode
		want []byte
	}{
		{
			name: "comfort",
			mode: ModeComfort,
			want: []byte{0xD2, 0x08, 0x01, 0xFF, 0xD9, 0x04, 0x81, 0x00},
		},
		{
			name: "off",
			mode: ModeOff,
			want: []byte{0xD2, 0x08, 0x00, 0xFF, 0xD9, 0x04, 0x81, 0x00},
		},
		{
			name: "eco",
			mode: ModeEco,
			want: []byte{0xD2, 0x08, 0x02, 0xFF, 0xD9, 0x04, 0x81, 0x00},
		},
		{
			name: "frost protection",
			mode: ModeFrostProtection,
			want: []byte{0xD2, 0x08, 0x03, 0xFF, 0xD9, 0x04, 0x81, 0x00},
		},
		{
			name: "comfort minus 1",
			mode: ModeComfortMinus1,
			want: []byte{0xD2, 0x08, 0x04, 0xFF, 0xD9, 0x04, 0x81, 0x00},
		},
		{
			name: "comfort minus 2",
			mode: ModeComfortMinus2,
			want: []byte{0xD2, 0x08, 0x05, 0xFF, 0xD9, 0x04, 0x81, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSetModePacket(sender, tt.mode))
		})
	}
}

func TestBuildSetModePacketMasksMode(t *testing.T) {
	sender := DeviceID{0x01, 0x02, 0x03, 0x04}

	// Out-of-range values are truncated to the low nibble, not rejected.
	packet := BuildSetModePacket(sender, Mode(0xF1))

	assert.Equal(t, byte(0x01), packet[2])
}

func TestBuildSetModePacketCommandIsFullByte(t *testing.T) {
	sender := DeviceID{0x01, 0x02, 0x03, 0x04}

	packet := BuildSetModePacket(sender, ModeComfort)

	// The direct-byte encoding carries no channel field: CMD 0x08 occupies
	// the whole byte.
	assert.Equal(t, byte(0x08), packet[1])
	assert.Len(t, packet, 8)
}

func TestParseModeResponse(t *testing.T) {
	data := []byte{0xD2, 0x0A, 0x01, 0xFF, 0xD9, 0x04, 0x81, 0x00}

	resp, err := ParseModeResponse(data)

	require.NoError(t, err)
	assert.Equal(t, byte(0xD2), resp.RORG)
	assert.Equal(t, CmdPilotWireModeResponse, resp.Cmd)
	assert.Equal(t, ModeComfort, resp.Mode)
	assert.True(t, resp.HasSender())
	assert.Equal(t, []byte{0xFF, 0xD9, 0x04, 0x81}, resp.SenderID)
}

func TestParseModeResponseTooShort(t *testing.T) {
	_, err := ParseModeResponse([]byte{0xD2, 0x0A})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTelegramTooShort)
}

func TestParseModeResponseThreeBytes(t *testing.T) {
	// Three bytes are enough for the mandatory fields; the sender identity
	// is reported as absent, not as an error.
	resp, err := ParseModeResponse([]byte{0xD2, 0x0A, 0x02})

	require.NoError(t, err)
	assert.Equal(t, ModeEco, resp.Mode)
	assert.False(t, resp.HasSender())
	assert.Nil(t, resp.SenderID)
}

func TestParseModeResponseMasksMode(t *testing.T) {
	resp, err := ParseModeResponse([]byte{0xD2, 0x0A, 0xF1, 0x01, 0x02, 0x03, 0x04, 0x00})

	require.NoError(t, err)
	assert.Equal(t, ModeComfort, resp.Mode)
}

func TestSetModeRoundTrip(t *testing.T) {
	sender := DeviceID{0x12, 0x34, 0x56, 0x78}

	modes := []Mode{
		ModeOff,
		ModeComfort,
		ModeEco,
		ModeFrostProtection,
		ModeComfortMinus1,
		ModeComfortMinus2,
	}

	for _, mode := range modes {
		packet := BuildSetModePacket(sender, mode)

		// Simulate the actuator's answer by rewriting the command byte.
		response := make([]byte, len(packet))
		copy(response, packet)
		response[1] = CmdPilotWireModeResponse

		resp, err := ParseModeResponse(response)
		require.NoError(t, err)
		assert.Equal(t, mode, resp.Mode)
		assert.Equal(t, sender[:], resp.SenderID)
	}
}

func TestBuildUTETeachInPacket(t *testing.T) {
	sender := DeviceID{0xFF, 0xD9, 0x04, 0x81}

	packet := BuildUTETeachInPacket(sender, DefaultManufacturerID)

	want := []byte{0xD4, 0x20, 0xD2, 0x01, 0x0C, 0x00, 0x46, 0xFF, 0xD9, 0x04, 0x81, 0x00}
	assert.Equal(t, want, packet)
}

func TestBuildUTETeachInPacketCustomManufacturer(t *testing.T) {
	sender := DeviceID{0x01, 0x02, 0x03, 0x04}

	packet := BuildUTETeachInPacket(sender, 0x07FF)

	assert.Equal(t, byte(0x07), packet[5])
	assert.Equal(t, byte(0xFF), packet[6])
	assert.Len(t, packet, 12)
}

func TestParseDeviceID(t *testing.T) {
	id, err := ParseDeviceID("FF:D9:04:81")

	require.NoError(t, err)
	assert.Equal(t, DeviceID{0xFF, 0xD9, 0x04, 0x81}, id)
	assert.Equal(t, "FF:D9:04:81", id.String())
}

func TestParseDeviceIDWithoutColons(t *testing.T) {
	id, err := ParseDeviceID("ffd90481")

	require.NoError(t, err)
	assert.Equal(t, DeviceID{0xFF, 0xD9, 0x04, 0x81}, id)
}

func TestParseDeviceIDInvalid(t *testing.T) {
	_, err := ParseDeviceID("FF:D9:04")
	assert.Error(t, err)

	_, err = ParseDeviceID("zz:zz:zz:zz")
	assert.Error(t, err)
}
