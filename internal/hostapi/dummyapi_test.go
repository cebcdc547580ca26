package hostapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummyHostDeviceListing(t *testing.T) {
	host := NewDefaultDummyHost(2, 44100, 48000)

	inputs, err := host.InputDevices()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "DummyInput", inputs[0].Name)

	outputs, err := host.OutputDevices()
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "DummyOutput", outputs[0].Name)
}

func TestDummyHostSupportedRatesIntersects(t *testing.T) {
	host := NewDefaultDummyHost(2, 44100, 48000)
	outputs, err := host.OutputDevices()
	require.NoError(t, err)

	supported := host.SupportedRates(outputs[0], false, []int{22050, 44100, 96000})
	assert.Equal(t, []int{44100}, supported)
}

func TestDummyHostRejectsUnknownDevice(t *testing.T) {
	host := NewDefaultDummyHost(2, 44100)

	_, err := host.OpenStream(StreamConfig{
		SampleRate:      44100,
		FramesPerBuffer: 64,
		OutputChannels:  2,
		OutputDeviceID:  "no-such-device",
	}, func(out, in []float32, frames int) {})
	assert.ErrorIs(t, err, ErrNoDeviceWithID)
}

func TestDummyStreamTicksOnlyWhileRunning(t *testing.T) {
	host := NewDefaultDummyHost(1, 44100)

	calls := 0
	stream, err := host.OpenStream(StreamConfig{
		SampleRate:      44100,
		FramesPerBuffer: 4,
		OutputChannels:  1,
	}, func(out, in []float32, frames int) {
		calls++
		for i := range out {
			out[i] = 0.5
		}
	})
	require.NoError(t, err)

	ds := stream.(*DummyStream)
	assert.Nil(t, ds.Tick(), "stopped streams never invoke the callback")
	assert.Zero(t, calls)

	require.NoError(t, stream.Start())
	out := ds.Tick()
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, out)
	assert.Equal(t, 1, calls)

	require.NoError(t, stream.Stop())
	assert.Nil(t, ds.Tick())
	assert.Equal(t, 1, calls)
}

func TestDummyStreamFeedsInput(t *testing.T) {
	host := NewDefaultDummyHost(1, 44100)

	var captured []float32
	stream, err := host.OpenStream(StreamConfig{
		SampleRate:      44100,
		FramesPerBuffer: 4,
		InputChannels:   1,
	}, func(out, in []float32, frames int) {
		captured = append(captured[:0], in...)
	})
	require.NoError(t, err)
	require.NoError(t, stream.Start())

	ds := stream.(*DummyStream)
	ds.TickWithInput([]float32{1, 2})
	assert.Equal(t, []float32{1, 2, 0, 0}, captured, "short input is zero padded")
}
