package engine

import (
	"github.com/waveline-audio/waveline/internal/devicecatalog"
)

// preferredRates are tried in order once the requested rate is ruled out.
var preferredRates = []int{48000, 44100}

// GetBestRate negotiates a sample rate for a stream. It intersects the
// supported-rate sets of the selected capture and playback devices with the
// standard rate table, preferring the requested rate, then 48000, then
// 44100, then the highest rate both sides support. Returns 0 when the
// devices share no usable rate.
func (e *Engine) GetBestRate(capturing, playing bool, requestedRate int) int {
	var rates []int
	switch {
	case capturing && playing:
		in := e.supportedRates(devicecatalog.Input)
		out := e.supportedRates(devicecatalog.Output)
		rates = intersect(in, out)
	case capturing:
		rates = e.supportedRates(devicecatalog.Input)
	case playing:
		rates = e.supportedRates(devicecatalog.Output)
	default:
		return 0
	}

	if len(rates) == 0 {
		e.logger.Warn("rate negotiation found no supported sample rates")
		return 0
	}

	if requestedRate > 0 && contains(rates, requestedRate) {
		return requestedRate
	}
	for _, rate := range preferredRates {
		if contains(rates, rate) {
			return rate
		}
	}

	// rates is ordered low to high, following the standard table.
	return rates[len(rates)-1]
}

// supportedRates queries the device selected by preference (or the default)
// in the given direction against the standard rate table.
func (e *Engine) supportedRates(dir devicecatalog.Direction) []int {
	name := e.playbackDeviceName
	if dir == devicecatalog.Input {
		name = e.recordDeviceName
	}
	device, ok := e.catalog.FindByName(dir, name)
	if !ok {
		return nil
	}
	return e.catalog.SupportedRates(device)
}

func intersect(a, b []int) []int {
	result := make([]int, 0, len(a))
	for _, v := range a {
		if contains(b, v) {
			result = append(result, v)
		}
	}
	return result
}

func contains(rates []int, rate int) bool {
	for _, r := range rates {
		if r == rate {
			return true
		}
	}
	return false
}
