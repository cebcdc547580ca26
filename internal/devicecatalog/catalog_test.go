package devicecatalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-audio/waveline/internal/hostapi"
)

func testHost() *hostapi.DummyHost {
	return hostapi.NewDummyHost(
		[]hostapi.DummyDevice{
			{
				Info:  hostapi.DeviceInfo{ID: "mic-1", Name: "Microphone", Channels: 2, DefaultRate: 48000},
				Rates: []int{44100, 48000, 96000},
			},
		},
		[]hostapi.DummyDevice{
			{
				Info:  hostapi.DeviceInfo{ID: "spk-1", Name: "Speakers", Channels: 2, DefaultRate: 48000},
				Rates: []int{44100, 48000},
			},
			{
				Info:  hostapi.DeviceInfo{ID: "hdmi-1", Name: "HDMI", Channels: 8, DefaultRate: 48000},
				Rates: []int{48000},
			},
		},
	)
}

func TestRescanSnapshotsDevices(t *testing.T) {
	c := New(testHost())

	inputs := c.InputDevices()
	require.Len(t, inputs, 1)
	assert.Equal(t, "Microphone", inputs[0].Name)
	assert.Equal(t, Input, inputs[0].Direction)

	outputs := c.OutputDevices()
	require.Len(t, outputs, 2)
	assert.Equal(t, "Speakers", outputs[0].Name)
	assert.Equal(t, Output, outputs[1].Direction)
}

func TestSupportedRates(t *testing.T) {
	c := New(testHost())
	inputs := c.InputDevices()
	require.Len(t, inputs, 1)

	assert.Equal(t, []int{44100, 48000, 96000}, c.SupportedRates(inputs[0]))
}

func TestFindByName(t *testing.T) {
	c := New(testHost())

	d, ok := c.FindByName(Output, "HDMI")
	require.True(t, ok)
	assert.Equal(t, "hdmi-1", d.HostID)

	// Empty name selects the first device of the direction.
	d, ok = c.FindByName(Output, "")
	require.True(t, ok)
	assert.Equal(t, "Speakers", d.Name)

	_, ok = c.FindByName(Input, "Does Not Exist")
	assert.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(testHost())
	outputs := c.OutputDevices()
	outputs[0].Name = "mutated"

	fresh := c.OutputDevices()
	assert.Equal(t, "Speakers", fresh[0].Name)
}
