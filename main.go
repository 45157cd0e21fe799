package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"enocean-pilotwire/config"
	"enocean-pilotwire/enocean"
	"enocean-pilotwire/mqtt"
	"enocean-pilotwire/pilotwire"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log.Println("Starting EnOcean Pilot Wire Gateway")

	// Load config from file, fall back to defaults
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Warning: Could not load config file %s: %v", *configPath, err)
		log.Println("Using default configuration")
		cfg = config.DefaultConfig()
	} else {
		log.Printf("Loaded config from %s (%d devices configured)", *configPath, len(cfg.Devices))
	}

	// Create EnOcean client for the configured link
	var enoceanClient *enocean.Client
	switch cfg.EnOcean.Transport {
	case "tcp":
		enoceanClient = enocean.NewTCPClient(cfg.EnOcean.Host, cfg.EnOcean.Port)
	default:
		enoceanClient = enocean.NewSerialClient(cfg.EnOcean.Device)
	}

	mqttClient := mqtt.NewClient(
		cfg.MQTT.Host,
		cfg.MQTT.Port,
		cfg.MQTT.ClientID,
		cfg.MQTT.Topic,
		cfg,
	)

	// Dispatcher is created up front so the telegram handler can be
	// registered before the link opens; devices join it after the gateway
	// base ID is known.
	dispatcher := pilotwire.NewDispatcher()
	dispatcher.SetStrictSender(cfg.EnOcean.StrictSender)

	// Set up telegram handler - classify pilot wire responses, mirror raw traffic
	enoceanClient.SetTelegramHandler(func(telegram *enocean.Telegram) {
		senderID := telegram.GetSenderID()
		deviceName := cfg.GetDeviceName(senderID)

		// Filter out echoes from our own transmissions
		if cfg.IsOwnSenderID(senderID) {
			log.Printf("Ignoring echo from own sender ID: %s", senderID)
			return
		}

		log.Printf("Received EnOcean telegram: Type=%d, Data=%s, SenderID=%s (%s)",
			telegram.PacketType,
			hex.EncodeToString(telegram.Data),
			senderID,
			deviceName)

		if telegram.IsRadio() && dispatcher.Dispatch(telegram.Data) {
			log.Printf("Applied pilot wire mode response from %s (%s)", senderID, deviceName)
		}

		if err := mqttClient.PublishTelegram(telegram); err != nil {
			log.Printf("Failed to publish telegram to MQTT: %v", err)
		}
	})

	// Set up event handler for EnOcean events
	enoceanClient.SetEventHandler(func(eventCode byte, data []byte) {
		log.Printf("EnOcean event: Code=0x%02X, Data=%s", eventCode, hex.EncodeToString(data))

		switch eventCode {
		case enocean.CO_READY:
			log.Println("Gateway is ready (CO_READY event received)")
			mqttClient.PublishEvent("gateway", "ready", "Gateway is ready after reset")

			// Re-read and publish version info after reset
			go func() {
				if versionInfo, err := enoceanClient.ReadVersion(); err == nil {
					mqttClient.PublishVersionInfo(versionInfo)
				}
			}()
		default:
			mqttClient.PublishEvent("unknown", "event", hex.EncodeToString(append([]byte{eventCode}, data...)))
		}
	})

	// Connect to EnOcean gateway
	if err := enoceanClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to EnOcean: %v", err)
	}
	defer enoceanClient.Close()

	// Initialize gateway (read IDs, disable repeater, enable maturity)
	if err := enoceanClient.Initialize(); err != nil {
		log.Printf("Warning: Gateway initialization incomplete: %v", err)
	}
	log.Printf("Gateway Base ID: %s", enoceanClient.GetBaseID())

	// Build the pilot wire devices now that the base ID is known
	devices := make(map[string]*pilotwire.Device)
	for actuatorID, devCfg := range cfg.Devices {
		device, err := buildDevice(actuatorID, devCfg, enoceanClient)
		if err != nil {
			log.Printf("Skipping device %s: %v", actuatorID, err)
			continue
		}

		device.SetObserver(func(st pilotwire.State) {
			if err := mqttClient.PublishClimateState(st); err != nil {
				log.Printf("Failed to publish climate state for %s: %v", st.Name, err)
			}
		})

		dispatcher.Register(device)
		devices[topicName(device.Name())] = device
		log.Printf("Registered pilot wire device %s (actuator %s)", device.Name(), actuatorID)
	}

	// Set up MQTT command handler
	mqttClient.SetCommandHandler(func(topic string, payload []byte) {
		log.Printf("Received MQTT command on %s: %s", topic, string(payload))

		// Gateway commands: <base>/cmd/reset
		if strings.HasSuffix(topic, "/cmd/reset") && !strings.Contains(topic, "/device/") {
			log.Println("Processing reset command...")
			if err := enoceanClient.Reset(); err != nil {
				log.Printf("Failed to reset gateway: %v", err)
				mqttClient.PublishEvent("reset", "error", err.Error())
			} else {
				mqttClient.PublishEvent("reset", "success", "Gateway reset initiated")
			}
			return
		}

		// Device commands: <base>/device/<name>/cmd/<action>
		name, action, ok := parseDeviceCommand(topic)
		if !ok {
			return
		}

		device, found := devices[name]
		if !found {
			log.Printf("Unknown device: %s", name)
			mqttClient.PublishEvent(name, "error", "Unknown device")
			return
		}

		state := strings.ToLower(strings.TrimSpace(string(payload)))

		switch action {
		case "hvac":
			var on bool
			switch state {
			case "heat", "on":
				on = true
			case "off":
				on = false
			default:
				log.Printf("Unknown hvac mode for %s: %s", name, state)
				mqttClient.PublishEvent(name, "error", "Unknown hvac mode: "+state)
				return
			}
			if err := device.SetHeating(on); err != nil {
				log.Printf("Failed to send hvac command to %s: %v", name, err)
				mqttClient.PublishEvent(name, "error", err.Error())
			} else {
				mqttClient.PublishEvent(name, "success", "HVAC mode set: "+state)
			}

		case "preset":
			preset, err := pilotwire.ParsePreset(state)
			if err != nil {
				log.Printf("Invalid preset for %s: %v", name, err)
				mqttClient.PublishEvent(name, "error", err.Error())
				return
			}
			if err := device.SetPreset(preset); err != nil {
				log.Printf("Failed to send preset command to %s: %v", name, err)
				mqttClient.PublishEvent(name, "error", err.Error())
			} else {
				mqttClient.PublishEvent(name, "success", "Preset set: "+state)
			}

		case "teach_in":
			log.Printf("Sending teach-in for %s. Put the actuator in learn mode to pair.", name)
			if err := device.TeachIn(); err != nil {
				log.Printf("Failed to send teach-in for %s: %v", name, err)
				mqttClient.PublishEvent(name, "error", err.Error())
			} else {
				mqttClient.PublishEvent(name, "success", "Teach-in sent")
			}

		default:
			log.Printf("Unknown command for %s: %s", name, action)
		}
	})

	// Connect to MQTT broker
	if err := mqttClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer mqttClient.Close()

	// Publish gateway info to MQTT
	if versionInfo, err := enoceanClient.ReadVersion(); err == nil {
		log.Printf("Gateway: %s (App: %s, API: %s, Chip: %s)",
			versionInfo.AppDescription,
			versionInfo.AppVersion,
			versionInfo.APIVersion,
			versionInfo.ChipID)
		if err := mqttClient.PublishVersionInfo(versionInfo); err != nil {
			log.Printf("Warning: Failed to publish version info: %v", err)
		}
	}
	mqttClient.PublishEvent("gateway", "ready", "Gateway initialized, Base ID: "+enoceanClient.GetBaseID())

	// Publish the optimistic initial state of every device
	for _, device := range devices {
		if err := mqttClient.PublishClimateState(device.State()); err != nil {
			log.Printf("Failed to publish initial state for %s: %v", device.Name(), err)
		}
	}

	log.Println("Gateway running. Press Ctrl+C to exit.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
}

// buildDevice resolves a configured device's identities and constructs its
// state machine. The sender identity is either configured explicitly or
// derived from the gateway base ID by offset.
func buildDevice(actuatorID string, devCfg config.Device, client *enocean.Client) (*pilotwire.Device, error) {
	deviceID, err := pilotwire.ParseDeviceID(actuatorID)
	if err != nil {
		return nil, err
	}

	var senderBytes []byte
	if devCfg.SenderID != "" {
		senderBytes, err = enocean.ParseSenderID(devCfg.SenderID)
	} else {
		senderBytes, err = client.SenderIDWithOffset(devCfg.SenderOffset)
	}
	if err != nil {
		return nil, err
	}

	var senderID pilotwire.DeviceID
	copy(senderID[:], senderBytes)

	name := devCfg.Name
	if name == "" {
		name = actuatorID
	}

	device := pilotwire.NewDevice(name, senderID, deviceID, client)
	if devCfg.ManufacturerID != 0 {
		device.SetManufacturerID(devCfg.ManufacturerID)
	}
	return device, nil
}

// topicName sanitizes a device name for use as an MQTT topic segment.
func topicName(name string) string {
	return strings.ReplaceAll(name, ":", "_")
}

// parseDeviceCommand splits <base>/device/<name>/cmd/<action> into its
// device name and action.
func parseDeviceCommand(topic string) (name, action string, ok bool) {
	parts := strings.Split(topic, "/")
	for i := 0; i+3 < len(parts); i++ {
		if parts[i] == "device" && parts[i+2] == "cmd" {
			return parts[i+1], parts[i+3], true
		}
	}
	return "", "", false
}
