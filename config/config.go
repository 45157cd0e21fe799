package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	EnOcean EnOceanConfig     `yaml:"enocean"`
	MQTT    MQTTConfig        `yaml:"mqtt"`
	Devices map[string]Device `yaml:"devices"` // Actuator ID -> Device info
}

// EnOceanConfig selects the gateway link: a USB dongle on a serial port or
// a TCP-attached gateway.
type EnOceanConfig struct {
	Transport string `yaml:"transport"` // "serial" or "tcp"
	Device    string `yaml:"device"`    // serial port path, e.g. /dev/ttyUSB0
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`

	// StrictSender enables sender-identity filtering on inbound pilot wire
	// responses. Off by default, matching the reference behavior.
	StrictSender bool `yaml:"strict_sender"`
}

type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Device describes one pilot wire actuator.
type Device struct {
	Name     string `yaml:"name"`      // Friendly name for MQTT topics
	SenderID string `yaml:"sender_id"` // Sender ID taught in to the actuator

	// SenderOffset derives the sender ID from the gateway base ID when no
	// explicit sender_id is configured (0-127).
	SenderOffset int `yaml:"sender_offset"`

	// ManufacturerID overrides the teach-in manufacturer identity.
	// Zero means the profile default (NodOn, 0x0046).
	ManufacturerID uint16 `yaml:"manufacturer_id"`
}

// GetDeviceName returns the friendly name for a device ID, or the ID itself if not found
func (c *Config) GetDeviceName(deviceID string) string {
	normalizedID := strings.ToUpper(deviceID)
	if device, ok := c.Devices[normalizedID]; ok && device.Name != "" {
		return device.Name
	}
	return deviceID
}

// GetDeviceByName finds a device by its friendly name
func (c *Config) GetDeviceByName(name string) (string, *Device) {
	nameLower := strings.ToLower(name)
	for id, device := range c.Devices {
		if strings.ToLower(device.Name) == nameLower {
			return id, &device
		}
	}
	return "", nil
}

// IsOwnSenderID checks if a sender ID is one of our configured transmitter IDs
// These are echoes from our own transmissions and should typically be ignored
func (c *Config) IsOwnSenderID(senderID string) bool {
	normalizedID := strings.ToUpper(senderID)
	for _, device := range c.Devices {
		if device.SenderID != "" && strings.ToUpper(device.SenderID) == normalizedID {
			return true
		}
	}
	return false
}

// Validate checks the parts of the config that would otherwise fail deep
// inside the gateway wiring.
func (c *Config) Validate() error {
	switch c.EnOcean.Transport {
	case "serial":
		if c.EnOcean.Device == "" {
			return fmt.Errorf("enocean.device is required for serial transport")
		}
	case "tcp":
		if c.EnOcean.Host == "" || c.EnOcean.Port == 0 {
			return fmt.Errorf("enocean.host and enocean.port are required for tcp transport")
		}
	default:
		return fmt.Errorf("unknown enocean.transport: %q", c.EnOcean.Transport)
	}

	for id, device := range c.Devices {
		if device.SenderOffset < 0 || device.SenderOffset > 127 {
			return fmt.Errorf("device %s: sender_offset out of range: %d", id, device.SenderOffset)
		}
		if device.SenderID != "" && !validSenderID(device.SenderID) {
			return fmt.Errorf("device %s: malformed sender_id: %q", id, device.SenderID)
		}
	}
	return nil
}

// validSenderID reports whether s is a 4-byte identity in XX:XX:XX:XX form
// (colons optional).
func validSenderID(s string) bool {
	clean := strings.ReplaceAll(s, ":", "")
	if len(clean) != 8 {
		return false
	}
	_, err := hex.DecodeString(clean)
	return err == nil
}

// Load reads config from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		EnOcean: EnOceanConfig{
			Transport: "serial",
			Device:    "/dev/ttyUSB0",
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "enocean-pilotwire-gateway",
			Topic:    "enocean",
		},
		Devices: make(map[string]Device),
	}
}
