package hostapi

import (
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
)

func TestFormatRatesCollectsDistinctNativeRates(t *testing.T) {
	rates := formatRates([]malgo.DataFormat{
		{Format: malgo.FormatS16, Channels: 2, SampleRate: 44100},
		{Format: malgo.FormatF32, Channels: 2, SampleRate: 44100},
		{Format: malgo.FormatS16, Channels: 2, SampleRate: 48000},
	})
	assert.Equal(t, []int{44100, 48000}, rates)
}

func TestFormatRatesFlexibleDevice(t *testing.T) {
	assert.Nil(t, formatRates(nil), "no formats means no fixed rates")
	assert.Nil(t, formatRates([]malgo.DataFormat{
		{Format: malgo.FormatF32, Channels: 2, SampleRate: 0},
	}), "a zero-rate format means the device resamples to any rate")
}

func TestDefaultRatePrefersStandardRates(t *testing.T) {
	assert.Equal(t, 48000, defaultRate([]int{44100, 48000, 96000}))
	assert.Equal(t, 44100, defaultRate([]int{22050, 44100, 96000}))
	assert.Equal(t, 96000, defaultRate([]int{88200, 96000}))
	assert.Equal(t, 48000, defaultRate(nil), "rate-flexible devices default to 48000")
}
