package mixer

import (
	"log/slog"
	"math"

	"github.com/oov/audio/resampler"

	"github.com/waveline-audio/waveline/internal/trackio"
	"github.com/waveline-audio/waveline/pkg/frame"
)

const resampleQuality = 10

// TrackSpec describes one playback track and its static mix parameters.
// Gain and Pan are the track's fader settings; Envelope, when non-nil, is a
// gain automation curve multiplied on top of Gain.
type TrackSpec struct {
	ID       trackio.TrackID
	Rate     int // source sample rate
	Gain     float64
	Pan      float64 // -1 full left .. +1 full right
	Envelope *Envelope

	// StartTime mutes the track before this track time. Used to silence
	// non-selected tracks during a recording pre-roll.
	StartTime float64
}

// Mixer reads a set of tracks over monotonically advancing time intervals
// and produces planar float blocks at the output rate, applying per-track
// gain/pan envelopes and any needed resampling.
//
// All buffers are allocated at construction; Process does not allocate.
// The mixer is owned by the buffer-exchange worker and is not safe for
// concurrent use.
type Mixer struct {
	logger *slog.Logger

	reader   trackio.Reader
	tracks   []TrackSpec
	rate     int // output rate
	channels int // 1 or 2
	maxBlock int // largest frame count Process accepts

	t       float64 // current track time
	cursors []int64 // per-track source sample positions

	resamplers []*resampler.Resampler // nil where track rate == output rate

	out      []frame.PCMFrame // planar accumulation, one per channel
	srcBuf   []float32        // raw samples read from storage
	trackBuf []float32        // one track resampled to the output rate
}

// New creates a mixer producing channels-channel planar blocks of at most
// maxBlock frames at the given output rate, starting at startTime.
func New(reader trackio.Reader, tracks []TrackSpec, channels, rate, maxBlock int, startTime float64) *Mixer {
	m := &Mixer{
		logger:     slog.Default().With("component", "mixer"),
		reader:     reader,
		tracks:     tracks,
		rate:       rate,
		channels:   channels,
		maxBlock:   maxBlock,
		cursors:    make([]int64, len(tracks)),
		resamplers: make([]*resampler.Resampler, len(tracks)),
		out:        make([]frame.PCMFrame, channels),
		trackBuf:   make([]float32, maxBlock),
	}

	// The source buffer must cover the worst-case input need of a resampled
	// block, plus slack for the resampler's internal latency.
	maxRatio := 1.0
	for _, tr := range tracks {
		if ratio := float64(tr.Rate) / float64(rate); ratio > maxRatio {
			maxRatio = ratio
		}
	}
	m.srcBuf = make([]float32, int(math.Ceil(float64(maxBlock)*maxRatio))+64)

	for ch := range m.out {
		m.out[ch] = make(frame.PCMFrame, maxBlock)
	}
	m.Reposition(startTime)
	return m
}

// Reposition moves the mixer's read position to track time t and resets
// per-track resampling state.
func (m *Mixer) Reposition(t float64) {
	m.t = t
	for i, tr := range m.tracks {
		m.cursors[i] = int64(math.Round(t * float64(tr.Rate)))
		if tr.Rate != m.rate {
			m.resamplers[i] = resampler.New(1, tr.Rate, m.rate, resampleQuality)
		} else {
			m.resamplers[i] = nil
		}
	}
}

// TrackTime returns the track time the next Process call reads from.
func (m *Mixer) TrackTime() float64 {
	return m.t
}

// Buffer returns the planar output for channel ch, valid until the next
// Process call.
func (m *Mixer) Buffer(ch int) []float32 {
	return m.out[ch]
}

// Process produces exactly frames output frames (capped at the block size)
// into the planar buffers and returns the count. A track whose storage read
// fails, or which has run out of samples, contributes silence for the
// affected sub-range; errors are localized, never fatal to the block.
func (m *Mixer) Process(frames int) int {
	if frames > m.maxBlock {
		frames = m.maxBlock
	}
	if frames <= 0 {
		return 0
	}

	for ch := range m.out {
		frame.Silence(m.out[ch][:frames])
	}

	dt := float64(frames) / float64(m.rate)
	for i := range m.tracks {
		m.mixTrack(i, frames, dt)
	}

	m.t += dt
	return frames
}

// mixTrack renders one track's next frames samples into trackBuf and
// accumulates them into the planar outputs with gain, envelope and pan.
func (m *Mixer) mixTrack(i, frames int, dt float64) {
	tr := &m.tracks[i]

	var produced int
	if m.resamplers[i] == nil {
		n, err := m.reader.ReadSamples(tr.ID, m.cursors[i], m.trackBuf[:frames])
		if err != nil {
			m.logger.Warn("track read failed, substituting silence",
				"track", tr.ID, "position", m.cursors[i], "err", err)
			n = 0
		}
		m.cursors[i] += int64(frames)
		produced = n
	} else {
		produced = m.resampleTrack(i, frames)
	}

	// Shortfall is left as silence.
	for j := produced; j < frames; j++ {
		m.trackBuf[j] = 0
	}

	// Mute any leading portion of the block before the track's start time.
	if tr.StartTime > m.t {
		mute := int(math.Round((tr.StartTime - m.t) * float64(m.rate)))
		if mute > frames {
			mute = frames
		}
		for j := 0; j < mute; j++ {
			m.trackBuf[j] = 0
		}
	}

	g0 := tr.Gain * tr.Envelope.ValueAt(m.t)
	g1 := tr.Gain * tr.Envelope.ValueAt(m.t+dt)

	if m.channels == 1 {
		m.accumulate(m.out[0][:frames], g0, g1, 1)
		return
	}

	// Simple constant-gain pan law, linearly interpolating envelope gain
	// across the block to avoid zipper noise.
	left := math.Min(1, 1-tr.Pan)
	right := math.Min(1, 1+tr.Pan)
	m.accumulate(m.out[0][:frames], g0, g1, left)
	m.accumulate(m.out[1][:frames], g0, g1, right)
}

func (m *Mixer) accumulate(dst []float32, g0, g1, chanGain float64) {
	n := len(dst)
	if n == 0 {
		return
	}
	delta := (g1 - g0) / float64(n)
	g := g0
	for j := range dst {
		dst[j] += float32(g*chanGain) * m.trackBuf[j]
		g += delta
	}
}

// resampleTrack fills trackBuf with frames samples converted from the
// track's rate to the output rate, pulling source samples as needed.
// Returns the number of output samples produced before the source ran out.
func (m *Mixer) resampleTrack(i, frames int) int {
	tr := &m.tracks[i]
	rs := m.resamplers[i]
	ratio := float64(tr.Rate) / float64(m.rate)

	produced := 0
	for produced < frames {
		need := int(math.Ceil(float64(frames-produced)*ratio)) + 16
		if need > len(m.srcBuf) {
			need = len(m.srcBuf)
		}
		n, err := m.reader.ReadSamples(tr.ID, m.cursors[i], m.srcBuf[:need])
		if err != nil {
			m.logger.Warn("track read failed, substituting silence",
				"track", tr.ID, "position", m.cursors[i], "err", err)
			n = 0
		}
		if n == 0 {
			break
		}
		read, written := rs.ProcessFloat32(0, m.srcBuf[:n], m.trackBuf[produced:frames])
		m.cursors[i] += int64(read)
		produced += written
		if read == 0 && written == 0 {
			break
		}
	}
	return produced
}
