package pilotwire

import "bytes"

// Dispatcher classifies received radio payloads and forwards pilot wire
// mode responses to the registered devices. Anything else on the channel —
// other profiles, other commands, foreign actuators — is discarded
// silently: unrelated traffic on a shared radio band is the normal case,
// not a fault.
type Dispatcher struct {
	devices []*Device

	// strictSender additionally matches the response's sender identity
	// against each device's configured actuator ID before forwarding.
	// Off by default: the reference implementation applies any matching
	// RORG/CMD telegram, and several same-profile actuators on one
	// channel is the uncommon case.
	strictSender bool
}

// NewDispatcher creates a dispatcher for the given devices.
func NewDispatcher(devices ...*Device) *Dispatcher {
	return &Dispatcher{devices: devices}
}

// SetStrictSender enables opt-in sender filtering: responses carrying a
// sender identity are only applied to the device whose actuator ID matches.
// Responses too short to carry a sender are still applied to all devices.
func (d *Dispatcher) SetStrictSender(strict bool) {
	d.strictSender = strict
}

// Register adds a device to the dispatch set.
func (d *Dispatcher) Register(dev *Device) {
	d.devices = append(d.devices, dev)
}

// Dispatch classifies one received telegram payload. It reports whether the
// payload was accepted as a pilot wire mode response and applied.
func (d *Dispatcher) Dispatch(data []byte) bool {
	if len(data) == 0 || data[0] != RORGVLD {
		return false
	}

	resp, err := ParseModeResponse(data)
	if err != nil {
		return false
	}
	if resp.Cmd != CmdPilotWireModeResponse {
		return false
	}

	applied := false
	for _, dev := range d.devices {
		if d.strictSender && resp.HasSender() && !bytes.Equal(resp.SenderID, dev.deviceID[:]) {
			continue
		}
		dev.ApplyMode(resp.Mode)
		applied = true
	}
	return applied
}
