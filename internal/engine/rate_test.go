package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waveline-audio/waveline/internal/hostapi"
	"github.com/waveline-audio/waveline/internal/trackio"
)

func rateHost(inputRates, outputRates []int) *hostapi.DummyHost {
	in := hostapi.DummyDevice{
		Info:  hostapi.DeviceInfo{ID: "in", Name: "In", Channels: 2},
		Rates: inputRates,
	}
	out := hostapi.DummyDevice{
		Info:  hostapi.DeviceInfo{ID: "out", Name: "Out", Channels: 2},
		Rates: outputRates,
	}
	return hostapi.NewDummyHost([]hostapi.DummyDevice{in}, []hostapi.DummyDevice{out})
}

func TestGetBestRate(t *testing.T) {
	tests := []struct {
		name        string
		inputRates  []int
		outputRates []int
		capturing   bool
		playing     bool
		requested   int
		want        int
	}{
		{
			name:        "requested rate supported by both sides",
			inputRates:  []int{44100, 48000},
			outputRates: []int{44100, 48000},
			capturing:   true, playing: true,
			requested: 44100,
			want:      44100,
		},
		{
			name:        "requested unsupported falls back to 48000",
			inputRates:  []int{44100, 48000},
			outputRates: []int{48000, 96000},
			capturing:   true, playing: true,
			requested: 44100,
			want:      48000,
		},
		{
			name:        "no preferred rate picks highest common",
			inputRates:  []int{88200, 96000},
			outputRates: []int{88200, 96000},
			capturing:   true, playing: true,
			requested: 44100,
			want:      96000,
		},
		{
			name:        "disjoint rate sets yield zero",
			inputRates:  []int{22050},
			outputRates: []int{96000},
			capturing:   true, playing: true,
			requested: 44100,
			want:      0,
		},
		{
			name:        "playback only ignores the input device",
			inputRates:  []int{8000},
			outputRates: []int{44100, 48000},
			playing:     true,
			requested:   44100,
			want:        44100,
		},
		{
			name:       "capture only ignores the output device",
			inputRates: []int{32000},
			capturing:  true,
			requested:  44100,
			want:       32000,
		},
		{
			name:      "neither direction yields zero",
			requested: 44100,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(rateHost(tt.inputRates, tt.outputRates), trackio.NewMemoryStore())
			got := e.GetBestRate(tt.capturing, tt.playing, tt.requested)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBestRateZeroRequestSkipsToPreferred(t *testing.T) {
	e := New(rateHost([]int{44100, 48000}, []int{44100, 48000}), trackio.NewMemoryStore())
	assert.Equal(t, 48000, e.GetBestRate(true, true, 0))
}
