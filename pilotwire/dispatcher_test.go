package pilotwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchAppliesModeResponse(t *testing.T) {
	tx := &fakeTransmitter{}
	d := newTestDevice(tx)
	disp := NewDispatcher(d)

	accepted := disp.Dispatch([]byte{0xD2, 0x0A, 0x02, 0x05, 0x87, 0x98, 0xD1, 0x00})

	assert.True(t, accepted)
	st := d.State()
	assert.True(t, st.Heating)
	assert.Equal(t, PresetEco, st.Preset)
	assert.Equal(t, ModeEco, st.Mode)
}

func TestDispatchOffResponse(t *testing.T) {
	d := newTestDevice(&fakeTransmitter{})
	disp := NewDispatcher(d)

	accepted := disp.Dispatch([]byte{0xD2, 0x0A, 0x00, 0x05, 0x87, 0x98, 0xD1, 0x00})

	assert.True(t, accepted)
	assert.False(t, d.State().Heating)
}

func TestDispatchIgnoresOtherRORG(t *testing.T) {
	d := newTestDevice(&fakeTransmitter{})
	notified := 0
	d.SetObserver(func(State) { notified++ })
	disp := NewDispatcher(d)

	// 4BS telegram, not VLD.
	accepted := disp.Dispatch([]byte{0xA5, 0xA0, 0x01})

	assert.False(t, accepted)
	assert.Zero(t, notified)
	assert.Equal(t, ModeComfort, d.State().Mode)
}

func TestDispatchIgnoresOtherCommands(t *testing.T) {
	d := newTestDevice(&fakeTransmitter{})
	notified := 0
	d.SetObserver(func(State) { notified++ })
	disp := NewDispatcher(d)

	// CMD 0x04 (actuator status response), not a pilot wire response.
	accepted := disp.Dispatch([]byte{0xD2, 0x04, 0x01, 0x05, 0x87, 0x98, 0xD1, 0x00})

	assert.False(t, accepted)
	assert.Zero(t, notified)
}

func TestDispatchIgnoresShortPayload(t *testing.T) {
	d := newTestDevice(&fakeTransmitter{})
	disp := NewDispatcher(d)

	assert.False(t, disp.Dispatch([]byte{0xD2, 0x0A}))
	assert.False(t, disp.Dispatch(nil))
}

func TestDispatchStrictSenderFiltering(t *testing.T) {
	tx := &fakeTransmitter{}
	heater := NewDevice("heater", testSenderID, DeviceID{0x05, 0x87, 0x98, 0xD1}, tx)
	towelRail := NewDevice("towel_rail", testSenderID, DeviceID{0x05, 0x11, 0x22, 0x33}, tx)

	disp := NewDispatcher(heater, towelRail)
	disp.SetStrictSender(true)

	// Response originating from the heater actuator.
	accepted := disp.Dispatch([]byte{0xD2, 0x0A, 0x03, 0x05, 0x87, 0x98, 0xD1, 0x00})

	require.True(t, accepted)
	assert.Equal(t, ModeFrostProtection, heater.State().Mode)
	assert.Equal(t, ModeComfort, towelRail.State().Mode)
}

func TestDispatchStrictSenderUnknownSender(t *testing.T) {
	heater := newTestDevice(&fakeTransmitter{})
	disp := NewDispatcher(heater)
	disp.SetStrictSender(true)

	accepted := disp.Dispatch([]byte{0xD2, 0x0A, 0x02, 0xDE, 0xAD, 0xBE, 0xEF, 0x00})

	assert.False(t, accepted)
	assert.Equal(t, ModeComfort, heater.State().Mode)
}

func TestDispatchStrictSenderAbsentSenderStillApplies(t *testing.T) {
	heater := newTestDevice(&fakeTransmitter{})
	disp := NewDispatcher(heater)
	disp.SetStrictSender(true)

	// Three-byte response: too short to carry a sender, still applied.
	accepted := disp.Dispatch([]byte{0xD2, 0x0A, 0x02})

	assert.True(t, accepted)
	assert.Equal(t, ModeEco, heater.State().Mode)
}

func TestDispatchPermissiveAppliesToAllDevices(t *testing.T) {
	tx := &fakeTransmitter{}
	heater := NewDevice("heater", testSenderID, DeviceID{0x05, 0x87, 0x98, 0xD1}, tx)
	towelRail := NewDevice("towel_rail", testSenderID, DeviceID{0x05, 0x11, 0x22, 0x33}, tx)
	disp := NewDispatcher(heater, towelRail)

	disp.Dispatch([]byte{0xD2, 0x0A, 0x02, 0x05, 0x87, 0x98, 0xD1, 0x00})

	// Default behavior matches the reference implementation: no sender
	// matching, every registered device applies the response.
	assert.Equal(t, ModeEco, heater.State().Mode)
	assert.Equal(t, ModeEco, towelRail.State().Mode)
}
