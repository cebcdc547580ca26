package engine

import (
	"math"

	"github.com/waveline-audio/waveline/pkg/frame"
)

// audioCallback is invoked by the host driver on its real-time thread for
// every hardware buffer. It must not allocate, take a blocking lock, or
// perform file I/O: it only moves samples between the driver's buffers and
// the ring buffers, updates atomic counters, and steps the state machine.
//
// Drivers may deliver more frames than the configured period; the scratch
// buffers are period-sized, so oversized buffers are processed in
// period-sized chunks.
func (e *Engine) audioCallback(out, in []float32, frames int) {
	maxFrames := e.framesPerBuffer
	if maxFrames <= 0 || frames <= maxFrames {
		e.processBuffer(out, in, frames)
		return
	}

	outChannels := len(e.playScratch)
	inChannels := len(e.capScratch)
	for offset := 0; offset < frames; offset += maxFrames {
		n := frames - offset
		if n > maxFrames {
			n = maxFrames
		}
		var outPart, inPart []float32
		if len(out) > 0 {
			outPart = out[offset*outChannels : (offset+n)*outChannels]
		}
		if len(in) > 0 {
			inPart = in[offset*inChannels : (offset+n)*inChannels]
		}
		e.processBuffer(outPart, inPart, n)
	}
}

func (e *Engine) processBuffer(out, in []float32, frames int) {
	st := e.currentState()
	switch st {
	case stateIdle, stateStopped:
		frame.Silence(out)
		return
	}

	if e.paused.Load() {
		frame.Silence(out)
		return
	}

	// A pending seek is honored only at a buffer boundary, never
	// mid-buffer: park in Seeking and let the worker reposition.
	if (st == stateRunning || st == stateDraining) && e.seekPending.Load() {
		e.state.Store(int32(stateSeeking))
		frame.Silence(out)
		return
	}
	if st == stateSeeking {
		frame.Silence(out)
		return
	}

	if st == statePriming {
		// Hold off until the worker has built up the head start; the
		// shortfall here is expected, not an underflow.
		if len(e.playbackRings) > 0 && e.commonReadyPlayback() < e.playbackQueueMin && !e.sched.Done() {
			frame.Silence(out)
			e.captureInput(in, frames)
			return
		}
		e.state.Store(int32(stateRunning))
		st = stateRunning
	}

	e.fillOutput(out, frames, st)
	e.captureInput(in, frames)
}

// fillOutput drains the playback rings into the driver's interleaved output
// buffer, padding with silence and counting an underflow when the rings
// cannot cover the full buffer while the stream is still supposed to be
// producing.
func (e *Engine) fillOutput(out []float32, frames int, st streamState) {
	if len(out) == 0 || len(e.playbackRings) == 0 {
		return
	}

	// Take a common size from all rings so channels stay aligned.
	toGet := e.commonReadyPlayback()
	if toGet > frames {
		toGet = frames
	}

	maxOut := 0
	for ch, ring := range e.playbackRings {
		n := ring.Get(e.playScratch[ch][:toGet])
		if n > maxOut {
			maxOut = n
		}
		// Pad the shortfall so stale scratch never reaches the device.
		tail := e.playScratch[ch][n:frames]
		frame.Silence(tail)
	}

	if maxOut < frames && st == stateRunning && !e.sched.Done() {
		// The worker failed to keep up with the real-time demand.
		e.underflowCount.Add(1)
	}

	frame.Interleave(out, e.playScratch, frames)
	e.samplesPlayed.Add(int64(maxOut))
	e.outLevel.Store(math.Float32bits(frame.Peak(out)))

	// Completion: the schedule has finished and everything in flight has
	// been delivered. The flag is polled by the transport; the callback
	// never calls into non-real-time code.
	if e.sched.Done() {
		if st == stateRunning {
			e.state.Store(int32(stateDraining))
		}
		if maxOut == 0 {
			e.callbackDone.Store(true)
		}
	}
}

// captureInput pushes the driver's interleaved input into the capture
// rings. When a ring is full the excess is dropped and accounted as a
// dropout interval rather than blocking or corrupting the recording.
func (e *Engine) captureInput(in []float32, frames int) {
	if len(in) == 0 || len(e.captureRings) == 0 {
		return
	}

	frame.Deinterleave(e.capScratch, in, frames)

	minPut := frames
	for ch, ring := range e.captureRings {
		put := ring.Put(e.capScratch[ch][:frames])
		if put < minPut {
			minPut = put
		}
	}

	pos := e.samplesCaptured.Load()
	if minPut < frames {
		e.overflowCount.Add(1)
		e.rec.noteLost(pos+int64(minPut), frames-minPut)
	} else {
		e.rec.noteDelivered()
	}
	e.samplesCaptured.Add(int64(frames))
	e.inLevel.Store(math.Float32bits(frame.Peak(in)))
}

// monitorCallback serves input monitoring: no ring buffers, no recording,
// just level metering of the incoming signal.
func (e *Engine) monitorCallback(_, in []float32, frames int) {
	if len(in) == 0 {
		return
	}
	e.inLevel.Store(math.Float32bits(frame.Peak(in)))
	e.samplesCaptured.Add(int64(frames))
}

// commonReadyPlayback returns the least occupancy across the playback
// rings. Safe from both sides: a stale cursor only underestimates.
func (e *Engine) commonReadyPlayback() int {
	if len(e.playbackRings) == 0 {
		return 0
	}
	common := e.playbackRings[0].AvailableToGet()
	for _, ring := range e.playbackRings[1:] {
		if n := ring.AvailableToGet(); n < common {
			common = n
		}
	}
	return common
}

// commonFreePlayback returns the least free space across the playback rings.
func (e *Engine) commonFreePlayback() int {
	if len(e.playbackRings) == 0 {
		return 0
	}
	common := e.playbackRings[0].AvailableToPut()
	for _, ring := range e.playbackRings[1:] {
		if n := ring.AvailableToPut(); n < common {
			common = n
		}
	}
	return common
}

// commonAvailCapture returns the least occupancy across the capture rings.
func (e *Engine) commonAvailCapture() int {
	if len(e.captureRings) == 0 {
		return 0
	}
	common := e.captureRings[0].AvailableToGet()
	for _, ring := range e.captureRings[1:] {
		if n := ring.AvailableToGet(); n < common {
			common = n
		}
	}
	return common
}
