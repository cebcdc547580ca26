package frame

// PCMFrame is a slice of 32-bit float PCM samples.
//
// Depending on context a PCMFrame may be interleaved (alternating channel
// samples, as delivered by hardware callbacks) or planar (one channel only,
// as stored in ring buffers and track storage). The helpers in this package
// convert between the two layouts without allocating, so they are safe to
// call from the hardware callback.
type PCMFrame []float32

// Silence zeroes the frame in place.
func Silence(p PCMFrame) {
	for i := range p {
		p[i] = 0
	}
}

// Interleave copies numChannels planar buffers into dst as interleaved
// samples. Each planar buffer must hold at least frames samples, and dst must
// hold at least frames*numChannels. dst is not cleared first, so callers that
// mix-accumulate may pre-fill it.
func Interleave(dst PCMFrame, planar []PCMFrame, frames int) {
	numChannels := len(planar)
	for ch, src := range planar {
		for i := 0; i < frames; i++ {
			dst[i*numChannels+ch] = src[i]
		}
	}
}

// Deinterleave splits frames interleaved samples from src into the planar
// destination buffers, one per channel.
func Deinterleave(planar []PCMFrame, src PCMFrame, frames int) {
	numChannels := len(planar)
	for ch, dst := range planar {
		for i := 0; i < frames; i++ {
			dst[i] = src[i*numChannels+ch]
		}
	}
}

// Peak returns the largest absolute sample value in p.
// Used for VU-style level metering.
func Peak(p PCMFrame) float32 {
	var peak float32
	for _, v := range p {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Clamp limits every sample to the [-1, 1] range in place.
func Clamp(p PCMFrame) {
	for i, v := range p {
		if v > 1 {
			p[i] = 1
		} else if v < -1 {
			p[i] = -1
		}
	}
}
