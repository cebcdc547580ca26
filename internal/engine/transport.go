package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/waveline-audio/waveline/internal/devicecatalog"
	"github.com/waveline-audio/waveline/internal/hostapi"
	"github.com/waveline-audio/waveline/internal/mixer"
	"github.com/waveline-audio/waveline/internal/schedule"
	"github.com/waveline-audio/waveline/internal/trackio"
	"github.com/waveline-audio/waveline/pkg/frame"
	"github.com/waveline-audio/waveline/pkg/ringbuffer"
)

var (
	ErrStreamActive = errors.New("a stream is already active")
	ErrNoCommonRate = errors.New("no sample rate supported by both devices")
)

// StartStream opens a hardware stream over the given track set and time
// range and returns a fresh stream token. On any failure every partial
// allocation is rolled back; no stream is left half open.
func (e *Engine) StartStream(tracks TransportTracks, t0, t1 float64, opts Options) (Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token.Load() != 0 {
		return 0, ErrStreamActive
	}
	e.stopMonitoringLocked()

	opts = opts.withDefaults()
	e.playbackDeviceName = opts.PlaybackDeviceName
	e.recordDeviceName = opts.RecordDeviceName

	playing := len(tracks.Playback) > 0
	capturing := len(tracks.Capture) > 0
	if !playing && !capturing {
		return 0, errors.New("stream with neither playback nor capture tracks")
	}

	rate := e.GetBestRate(capturing, playing, opts.Rate)
	if rate == 0 {
		return 0, ErrNoCommonRate
	}

	cfg := hostapi.StreamConfig{
		SampleRate:      rate,
		FramesPerBuffer: opts.FramesPerBuffer,
	}
	if playing {
		device, ok := e.catalog.FindByName(devicecatalog.Output, opts.PlaybackDeviceName)
		if !ok {
			return 0, fmt.Errorf("playback device %q not found", opts.PlaybackDeviceName)
		}
		cfg.OutputChannels = opts.PlaybackChannels
		cfg.OutputDeviceID = device.HostID
	}
	if capturing {
		device, ok := e.catalog.FindByName(devicecatalog.Input, opts.RecordDeviceName)
		if !ok {
			return 0, fmt.Errorf("record device %q not found", opts.RecordDeviceName)
		}
		cfg.InputChannels = len(tracks.Capture)
		if opts.RecordChannels > 0 && opts.RecordChannels != cfg.InputChannels {
			return 0, fmt.Errorf("record channel preference %d does not match %d capture tracks",
				opts.RecordChannels, len(tracks.Capture))
		}
		cfg.InputDeviceID = device.HostID
	}

	// Ring buffers are sized from the latency preference at the
	// negotiated rate, with the hardware period as the floor.
	latencyFrames := opts.latencyFrames(rate)
	ringCapacity := latencyFrames
	if ringCapacity < opts.FramesPerBuffer {
		ringCapacity = opts.FramesPerBuffer
	}

	playStart := t0
	if capturing && opts.PreRoll > 0 {
		playStart = t0 - opts.PreRoll
	}

	var warp schedule.Warp
	if opts.Warp != nil {
		warp = opts.Warp
	} else {
		warp = schedule.LinearWarp{Speed: opts.Speed}
	}

	e.rate = rate
	e.framesPerBuffer = opts.FramesPerBuffer
	e.tracks = tracks
	e.sched = schedule.New(playStart, t1, rate, opts.Looping, warp)

	if playing {
		specs := e.prerollAdjustedSpecs(tracks, t0, opts.PreRoll)
		maxBlock := 4 * opts.FramesPerBuffer
		if maxBlock > ringCapacity {
			maxBlock = ringCapacity
		}
		e.mix = mixer.New(e.store, specs, opts.PlaybackChannels, rate, maxBlock, playStart)

		e.playbackRings = make([]*ringbuffer.RingBuffer, opts.PlaybackChannels)
		e.playScratch = make([]frame.PCMFrame, opts.PlaybackChannels)
		for ch := range e.playbackRings {
			e.playbackRings[ch] = ringbuffer.New(ringCapacity)
			e.playScratch[ch] = make(frame.PCMFrame, opts.FramesPerBuffer)
		}
	}
	if capturing {
		e.captureRings = make([]*ringbuffer.RingBuffer, len(tracks.Capture))
		e.capScratch = make([]frame.PCMFrame, len(tracks.Capture))
		for ch := range e.captureRings {
			e.captureRings[ch] = ringbuffer.New(ringCapacity)
			e.capScratch[ch] = make(frame.PCMFrame, opts.FramesPerBuffer)
		}
		e.capBatch = make([]float32, 4*opts.FramesPerBuffer)
	}

	e.rec = newRecordingSchedule(t0, t1, opts.PreRoll, opts.correctionSeconds(), rate, len(tracks.Capture))
	e.lastLost = nil

	e.playbackFramesToCopy = opts.FramesPerBuffer
	e.playbackQueueMin = latencyFrames
	if e.playbackQueueMin > ringCapacity {
		e.playbackQueueMin = ringCapacity
	}
	e.minCaptureFramesToCopy = opts.FramesPerBuffer

	e.paused.Store(false)
	e.seekPending.Store(false)
	e.callbackDone.Store(false)
	e.samplesPlayed.Store(0)
	e.samplesCaptured.Store(0)
	e.underflowCount.Store(0)
	e.overflowCount.Store(0)

	stream, err := e.host.OpenStream(cfg, e.audioCallback)
	if err != nil {
		e.releaseStreamLocked()
		return 0, fmt.Errorf("failed to open hardware stream: %w", err)
	}
	e.stream = stream

	// Prime the playback rings synchronously before the hardware starts,
	// so the callback finds a head start instead of underflowing. Always
	// done here rather than racing the worker's first pass.
	e.state.Store(int32(statePriming))
	e.fillPlayBuffers()

	e.workerDone = make(chan struct{})
	e.workerWG.Add(1)
	go e.runWorker()

	if err := stream.Start(); err != nil {
		close(e.workerDone)
		e.workerWG.Wait()
		_ = stream.Stop()
		_ = stream.Close()
		e.releaseStreamLocked()
		e.state.Store(int32(stateIdle))
		return 0, fmt.Errorf("failed to start hardware stream: %w", err)
	}

	e.lastToken++
	token := Token(e.lastToken)
	e.token.Store(int64(token))

	for _, aux := range tracks.Aux {
		aux.StreamStarted(rate, playStart)
	}

	e.logger.Info(
		"stream started",
		"token", token,
		"rate", rate,
		"framesPerBuffer", opts.FramesPerBuffer,
		"ringCapacity", ringCapacity,
		"playing", playing,
		"capturing", capturing,
	)
	return token, nil
}

// prerollAdjustedSpecs mutes playback tracks outside the pre-roll subset
// until the recording start point.
func (e *Engine) prerollAdjustedSpecs(tracks TransportTracks, t0, preRoll float64) []mixer.TrackSpec {
	specs := append([]mixer.TrackSpec(nil), tracks.Playback...)
	if preRoll <= 0 || len(tracks.PreRoll) == 0 {
		return specs
	}
	inSubset := make(map[trackio.TrackID]bool, len(tracks.PreRoll))
	for _, id := range tracks.PreRoll {
		inSubset[id] = true
	}
	for i := range specs {
		if !inSubset[specs[i].ID] && specs[i].StartTime < t0 {
			specs[i].StartTime = t0
		}
	}
	return specs
}

// StopStream quiesces the callback, joins the worker, flushes captured
// audio, applies latency correction and releases all buffers. Idempotent:
// calling it with no active stream is a no-op.
func (e *Engine) StopStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return nil
	}

	token := Token(e.token.Load())

	// Closing the hardware stream first guarantees the callback is no
	// longer invoked before any buffer is released.
	if err := e.stream.Stop(); err != nil {
		e.logger.Error("error stopping hardware stream", "err", err)
	}
	e.state.Store(int32(stateStopped))

	close(e.workerDone)
	e.workerWG.Wait() // the worker's final pass drains the capture rings

	latencyFrames := e.stream.LatencyFrames()
	if err := e.stream.Close(); err != nil {
		e.logger.Error("error closing hardware stream", "err", err)
	}

	var err error
	if e.rec != nil {
		e.applyLatencyCorrectionLocked(latencyFrames)
		e.lastLost = e.rec.lostIntervals()
		err = e.rec.takeWriteError()
		if len(e.lastLost) > 0 {
			e.logger.Warn("capture dropouts detected", "intervals", len(e.lastLost))
		}
	}

	finalTime := 0.0
	if e.sched != nil {
		finalTime = e.sched.TrackTime()
	}

	for _, aux := range e.tracks.Aux {
		aux.StreamStopped()
	}

	e.releaseStreamLocked()

	// Only clear the token once everything is torn down.
	e.token.Store(0)
	e.state.Store(int32(stateIdle))

	e.events.publish(Event{Kind: EventCompletion, Token: token, Time: finalTime})
	e.logger.Info("stream stopped", "token", token)
	return err
}

// applyLatencyCorrectionLocked shifts the captured tracks' start position
// by the correction preference, falling back to the measured hardware
// latency when no preference is set. Runs after the final capture drain.
func (e *Engine) applyLatencyCorrectionLocked(measuredLatencyFrames int) {
	if len(e.tracks.Capture) == 0 {
		return
	}

	shiftSamples := int64(math.Round(e.rec.correction * float64(e.rate)))
	if shiftSamples == 0 {
		shiftSamples = -int64(measuredLatencyFrames)
	}
	if shiftSamples == 0 {
		return
	}

	shifter, ok := e.store.(trackio.StartShifter)
	if !ok {
		e.logger.Warn("track storage cannot shift start positions, skipping latency correction")
		return
	}

	for _, id := range e.tracks.Capture {
		var err error
		if shiftSamples < 0 {
			err = shifter.TrimStart(id, -shiftSamples)
		} else {
			err = shifter.PadStart(id, shiftSamples)
		}
		if err != nil {
			e.logger.Error("latency correction failed", "track", id, "err", err)
		}
	}
	e.logger.Debug("applied latency correction", "samples", shiftSamples)
}

// releaseStreamLocked drops all per-stream wiring. The callback must no
// longer be running.
func (e *Engine) releaseStreamLocked() {
	e.stream = nil
	e.playbackRings = nil
	e.captureRings = nil
	e.playScratch = nil
	e.capScratch = nil
	e.capBatch = nil
	e.mix = nil
	e.rec = nil
	e.workerDone = nil
	e.tracks = TransportTracks{}
}

// SeekStream requests a playback reposition by offset track seconds
// relative to the current position. The request is honored by the callback
// at the next buffer boundary, never mid-buffer.
func (e *Engine) SeekStream(offset float64) {
	if e.token.Load() == 0 {
		return
	}
	sched := e.sched
	if sched == nil {
		return
	}
	target := sched.TrackTime() + offset
	e.seekTarget.Store(math.Float64bits(target))
	e.seekPending.Store(true)
}

// StartMonitoring opens a capture-only stream that feeds the input level
// meter without recording. Monitoring runs without a token, matching the
// "stream token 0" convention for non-recording input.
func (e *Engine) StartMonitoring(opts Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.monitorStream != nil || e.stream != nil {
		return nil
	}

	opts = opts.withDefaults()
	channels := opts.RecordChannels
	if channels <= 0 {
		channels = 1
	}

	rate := e.GetBestRate(true, false, opts.Rate)
	if rate == 0 {
		return ErrNoCommonRate
	}

	device, ok := e.catalog.FindByName(devicecatalog.Input, opts.RecordDeviceName)
	if !ok {
		return fmt.Errorf("record device %q not found", opts.RecordDeviceName)
	}

	stream, err := e.host.OpenStream(hostapi.StreamConfig{
		SampleRate:      rate,
		FramesPerBuffer: opts.FramesPerBuffer,
		InputChannels:   channels,
		InputDeviceID:   device.HostID,
	}, e.monitorCallback)
	if err != nil {
		return fmt.Errorf("failed to open monitoring stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start monitoring stream: %w", err)
	}

	e.monitorStream = stream
	e.logger.Info("input monitoring started", "rate", rate, "channels", channels)
	return nil
}

// StopMonitoring closes the monitoring stream if one is open. No-op
// otherwise.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopMonitoringLocked()
}

func (e *Engine) stopMonitoringLocked() {
	if e.monitorStream == nil {
		return
	}
	if err := e.monitorStream.Stop(); err != nil {
		e.logger.Error("error stopping monitoring stream", "err", err)
	}
	if err := e.monitorStream.Close(); err != nil {
		e.logger.Error("error closing monitoring stream", "err", err)
	}
	e.monitorStream = nil
	e.logger.Info("input monitoring stopped")
}
