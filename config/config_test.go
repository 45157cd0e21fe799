package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSerialConfig(t *testing.T) {
	path := writeConfig(t, `
enocean:
  transport: serial
  device: /dev/tty.usbserial-FT4TVD76
  strict_sender: true
mqtt:
  host: broker.local
  port: 1883
  topic: heating
devices:
  "05:87:98:D1":
    name: living_room
    sender_id: "FF:B2:99:00"
  "05:11:22:33":
    name: bedroom
    sender_offset: 3
    manufacturer_id: 0x07FF
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "serial", cfg.EnOcean.Transport)
	assert.Equal(t, "/dev/tty.usbserial-FT4TVD76", cfg.EnOcean.Device)
	assert.True(t, cfg.EnOcean.StrictSender)
	assert.Equal(t, "heating", cfg.MQTT.Topic)

	require.Len(t, cfg.Devices, 2)
	living := cfg.Devices["05:87:98:D1"]
	assert.Equal(t, "living_room", living.Name)
	assert.Equal(t, "FF:B2:99:00", living.SenderID)

	bedroom := cfg.Devices["05:11:22:33"]
	assert.Equal(t, 3, bedroom.SenderOffset)
	assert.Equal(t, uint16(0x07FF), bedroom.ManufacturerID)
}

func TestLoadTCPConfig(t *testing.T) {
	path := writeConfig(t, `
enocean:
  transport: tcp
  host: 192.168.178.24
  port: 2000
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.EnOcean.Transport)
	assert.Equal(t, 2000, cfg.EnOcean.Port)
	// Defaults survive a partial file.
	assert.Equal(t, "enocean", cfg.MQTT.Topic)
	assert.Equal(t, 1883, cfg.MQTT.Port)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	path := writeConfig(t, `
enocean:
  transport: carrier-pigeon
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsTCPWithoutHost(t *testing.T) {
	path := writeConfig(t, `
enocean:
  transport: tcp
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsSenderOffsetOutOfRange(t *testing.T) {
	path := writeConfig(t, `
enocean:
  transport: serial
  device: /dev/ttyUSB0
devices:
  "05:87:98:D1":
    name: heater
    sender_offset: 200
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedSenderID(t *testing.T) {
	for _, senderID := range []string{"FF:B2:99", "FF:B2:99:ZZ", "FF:B2:99:00:01"} {
		path := writeConfig(t, `
enocean:
  transport: serial
  device: /dev/ttyUSB0
devices:
  "05:87:98:D1":
    name: heater
    sender_id: "`+senderID+`"
`)

		_, err := Load(path)
		assert.Error(t, err, "sender_id %q should be rejected at load", senderID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "serial", cfg.EnOcean.Transport)
	assert.Equal(t, "enocean-pilotwire-gateway", cfg.MQTT.ClientID)
	assert.NotNil(t, cfg.Devices)
}

func TestGetDeviceName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices["05:87:98:D1"] = Device{Name: "living_room"}

	assert.Equal(t, "living_room", cfg.GetDeviceName("05:87:98:d1"))
	assert.Equal(t, "AA:BB:CC:DD", cfg.GetDeviceName("AA:BB:CC:DD"))
}

func TestGetDeviceByName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices["05:87:98:D1"] = Device{Name: "Living_Room"}

	id, device := cfg.GetDeviceByName("living_room")
	require.NotNil(t, device)
	assert.Equal(t, "05:87:98:D1", id)

	_, device = cfg.GetDeviceByName("attic")
	assert.Nil(t, device)
}

func TestIsOwnSenderID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices["05:87:98:D1"] = Device{Name: "heater", SenderID: "FF:B2:99:00"}

	assert.True(t, cfg.IsOwnSenderID("ff:b2:99:00"))
	assert.False(t, cfg.IsOwnSenderID("05:87:98:D1"))
}
