package engine

import (
	"math"
	"time"
)

// workerQuantum paces the buffer-exchange worker. Small against the ring
// latency so a single late wakeup never drains the head start.
const workerQuantum = 10 * time.Millisecond

// runWorker is the buffer-exchange goroutine: it keeps the playback rings
// topped up from the mixer, moves captured samples from the capture rings
// into track storage, applies seek requests and publishes progress events.
// All storage I/O of the stream happens here, never on the callback thread.
func (e *Engine) runWorker() {
	defer e.workerWG.Done()

	ticker := time.NewTicker(workerQuantum)
	defer ticker.Stop()

	for {
		select {
		case <-e.workerDone:
			// Final pass: the hardware has stopped, flush whatever the
			// callback left in the capture rings.
			e.drainRecordBuffers(true)
			return
		case <-ticker.C:
		}

		if e.currentState() == stateSeeking {
			e.applySeek()
		}
		if !e.paused.Load() {
			e.fillPlayBuffers()
		}
		e.drainRecordBuffers(false)
		e.publishProgress()
	}
}

// fillPlayBuffers mixes as much audio as the playback rings can take,
// bounded by the schedule. Producing nothing when less than a full chunk of
// space is free keeps storage reads in efficient block-sized units.
func (e *Engine) fillPlayBuffers() {
	if len(e.playbackRings) == 0 || e.sched.Done() {
		return
	}

	nAvail := e.commonFreePlayback()
	if nAvail < e.playbackFramesToCopy {
		return
	}

	// Fill up to the queue minimum, but always at least one chunk.
	available := e.playbackQueueMin - e.commonReadyPlayback()
	if available < e.playbackFramesToCopy {
		available = e.playbackFramesToCopy
	}
	if available > nAvail {
		available = nAvail
	}

	for available > 0 {
		chunk := e.sched.SliceFrames(available)
		if chunk <= 0 {
			break
		}

		tBefore := e.sched.TrackTime()
		n := e.mix.Process(chunk)
		if n <= 0 {
			break
		}
		for ch, ring := range e.playbackRings {
			ring.Put(e.mix.Buffer(ch)[:n])
		}

		newT, _ := e.sched.Advance(n)
		if newT < tBefore {
			// Loop wrap: restart the mixer's read position at the loop
			// start so the next block reads the right samples.
			e.mix.Reposition(newT)
		}
		available -= n
	}
}

// drainRecordBuffers appends captured samples from the capture rings to
// their tracks. Below the batching threshold nothing is moved, except on
// the final pass after the hardware has stopped, which drains everything.
func (e *Engine) drainRecordBuffers(final bool) {
	if len(e.captureRings) == 0 {
		return
	}

	avail := e.commonAvailCapture()
	if avail == 0 || (!final && avail < e.minCaptureFramesToCopy) {
		return
	}

	for ch, ring := range e.captureRings {
		remaining := avail
		for remaining > 0 {
			chunk := remaining
			if chunk > len(e.capBatch) {
				chunk = len(e.capBatch)
			}
			got := ring.Get(e.capBatch[:chunk])
			if got == 0 {
				break
			}

			samples := e.capBatch[:got]
			// Pre-roll audio is heard but never recorded.
			if discard := e.rec.preRollDiscard[ch]; discard > 0 {
				if discard >= int64(got) {
					e.rec.preRollDiscard[ch] -= int64(got)
					samples = nil
				} else {
					samples = samples[discard:]
					e.rec.preRollDiscard[ch] = 0
				}
			}

			if len(samples) > 0 {
				if err := e.store.AppendSamples(e.tracks.Capture[ch], samples); err != nil {
					e.logger.Error("failed to append captured samples",
						"track", e.tracks.Capture[ch], "err", err)
					e.rec.noteWriteError(err)
				}
			}
			remaining -= got
		}
	}

	// With no playback side the schedule clock follows the capture drain.
	if len(e.playbackRings) == 0 && e.sched != nil {
		_, completed := e.sched.Advance(avail)
		if completed {
			e.callbackDone.Store(true)
		}
	}
}

// applySeek performs a reposition requested by SeekStream. Only called
// while the callback is parked in the seeking state, so the rings are
// quiescent on the consumer side.
func (e *Engine) applySeek() {
	target := math.Float64frombits(e.seekTarget.Load())
	t := e.sched.Reposition(target)

	if e.mix != nil {
		e.mix.Reposition(t)
	}
	for _, ring := range e.playbackRings {
		ring.Reset()
	}

	e.seekPending.Store(false)
	e.callbackDone.Store(false)

	// Re-prime before letting the callback consume again, mirroring the
	// head start given at stream start.
	e.state.Store(int32(statePriming))
	e.fillPlayBuffers()

	for _, aux := range e.tracks.Aux {
		aux.Rebase(t)
	}
	e.logger.Debug("seek applied", "trackTime", t)
}

// publishProgress emits coalesced position and level events and drives any
// aux streams forward.
func (e *Engine) publishProgress() {
	token := Token(e.token.Load())
	if token == 0 || e.sched == nil {
		return
	}

	now := e.sched.TrackTime()
	e.events.publish(Event{Kind: EventPosition, Token: token, Time: now})
	e.events.publish(Event{
		Kind:        EventLevels,
		Token:       token,
		Time:        now,
		InputLevel:  e.InputLevel(),
		OutputLevel: e.OutputLevel(),
	})

	if !e.paused.Load() {
		for _, aux := range e.tracks.Aux {
			aux.Advance(now)
		}
	}
}

// PlaybackCompleted reports whether the current stream has played its whole
// selection and drained everything in flight. The application polls this
// (or watches for the completion event) and then calls StopStream.
func (e *Engine) PlaybackCompleted() bool {
	return e.callbackDone.Load()
}
