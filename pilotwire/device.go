package pilotwire

import "sync"

// packetTypeRadioERP1 is the ESP3 type tag for radio telegrams, passed to
// the transport with every outbound telegram.
const packetTypeRadioERP1 byte = 0x01

// Transmitter is the contract this core requires from the transport layer.
// The transport owns physical framing, checksums and link-level retries;
// this core only hands it fully-built telegram bytes plus the optional
// trailer used to address a specific actuator.
type Transmitter interface {
	Send(data, optional []byte, packetType byte) error
}

// State is an immutable snapshot of a device's control state, delivered to
// observers after every change.
type State struct {
	Name    string
	Heating bool
	Preset  Preset
	Mode    Mode
	Action  Action
}

// Device is the control state machine for one pilot wire actuator. It holds
// the heating intent, the selected preset and the last-confirmed wire mode,
// and translates user commands into outbound telegrams.
//
// Commands from user actions and inbound telegram application may run
// concurrently; all mutations are serialized by an internal mutex. Updates
// are optimistic: state is never rolled back when no response arrives.
type Device struct {
	name           string
	senderID       DeviceID
	deviceID       DeviceID
	manufacturerID uint16
	tx             Transmitter

	mu       sync.Mutex
	heating  bool
	preset   Preset
	mode     Mode
	observer func(State)
}

// NewDevice creates a device addressed as deviceID, transmitting with the
// senderID taught in to the actuator. The initial state is heating in
// comfort, the factory default, so a freshly-added device reports a sane
// state before its first confirmed response.
func NewDevice(name string, senderID, deviceID DeviceID, tx Transmitter) *Device {
	return &Device{
		name:           name,
		senderID:       senderID,
		deviceID:       deviceID,
		manufacturerID: DefaultManufacturerID,
		tx:             tx,
		heating:        true,
		preset:         PresetComfort,
		mode:           ModeComfort,
	}
}

// SetObserver registers a callback invoked synchronously with the new state
// after every change. The callback must not block.
func (d *Device) SetObserver(fn func(State)) {
	d.mu.Lock()
	d.observer = fn
	d.mu.Unlock()
}

// SetManufacturerID overrides the manufacturer identity used in teach-in
// telegrams.
func (d *Device) SetManufacturerID(id uint16) {
	d.mu.Lock()
	d.manufacturerID = id
	d.mu.Unlock()
}

// Name returns the device's friendly name.
func (d *Device) Name() string {
	return d.name
}

// DeviceID returns the actuator identity this device addresses.
func (d *Device) DeviceID() DeviceID {
	return d.deviceID
}

// State returns a snapshot of the current control state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *Device) snapshot() State {
	return State{
		Name:    d.name,
		Heating: d.heating,
		Preset:  d.preset,
		Mode:    d.mode,
		Action:  ClassifyAction(d.heating, d.mode),
	}
}

// wireMode is the mode reported to the wire layer: off while heating is
// disabled regardless of the stored preset, so that toggling back on
// restores the previously selected preset.
func (d *Device) wireMode() Mode {
	if !d.heating {
		return ModeOff
	}
	m, _ := PresetToMode(d.preset)
	return m
}

// SetHeating turns the heater on or off. Off preserves the stored preset;
// on restores it. The matching telegram is sent immediately and observers
// are notified of the optimistic local state.
//
// The lock covers only state mutation and telegram assembly. The transport
// call happens after release: a send awaiting its gateway response must not
// stall inbound telegram application, which runs on the receive path.
func (d *Device) SetHeating(on bool) error {
	d.mu.Lock()
	d.heating = on
	d.mode = d.wireMode()
	data := BuildSetModePacket(d.senderID, d.mode)
	optional := d.trailer()
	st := d.snapshot()
	fn := d.observer
	d.mu.Unlock()

	if fn != nil {
		fn(st)
	}
	return d.tx.Send(data, optional, packetTypeRadioERP1)
}

// SetPreset selects a heating preset. The preset is recorded even while the
// heater is off, but a telegram is only sent when there is something to
// actuate. Unknown presets are rejected with ErrInvalidPreset and cause no
// state change and no notification.
func (d *Device) SetPreset(p Preset) error {
	mode, ok := PresetToMode(p)
	if !ok {
		return ErrInvalidPreset
	}

	d.mu.Lock()
	d.preset = p
	var data, optional []byte
	if d.heating {
		d.mode = mode
		data = BuildSetModePacket(d.senderID, mode)
		optional = d.trailer()
	}
	st := d.snapshot()
	fn := d.observer
	d.mu.Unlock()

	if fn != nil {
		fn(st)
	}
	if data == nil {
		return nil
	}
	return d.tx.Send(data, optional, packetTypeRadioERP1)
}

// ApplyMode applies a mode decoded from an inbound response telegram. Off
// disables heating; any other mode enables it and updates the stored
// preset. No telegram is sent.
func (d *Device) ApplyMode(m Mode) {
	d.mu.Lock()
	if m == ModeOff {
		d.heating = false
	} else {
		d.heating = true
		if p, ok := ModeToPreset(m); ok {
			d.preset = p
		}
	}
	d.mode = m
	st := d.snapshot()
	fn := d.observer
	d.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// TeachIn emits the UTE teach-in telegram pairing this device's sender
// identity with the D2-01-0C profile. It can be invoked at any time and
// does not touch the control state.
func (d *Device) TeachIn() error {
	d.mu.Lock()
	data := BuildUTETeachInPacket(d.senderID, d.manufacturerID)
	optional := d.trailer()
	d.mu.Unlock()

	return d.tx.Send(data, optional, packetTypeRadioERP1)
}

// trailer builds the optional radio data addressing the actuator:
// subtelegram count, destination, dBm for maximum transmit power and an
// unencrypted security level.
func (d *Device) trailer() []byte {
	optional := make([]byte, 0, 7)
	optional = append(optional, 0x03)
	optional = append(optional, d.deviceID[:]...)
	optional = append(optional, 0xFF, 0x00)
	return optional
}
