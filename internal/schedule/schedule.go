package schedule

import (
	"math"
	"sync/atomic"
)

// Warp maps between real (wall-clock) playback time and track time, enabling
// variable-speed playback. Implementations must be pure functions of their
// parameters: the schedule calls them from the buffer-exchange worker only.
type Warp interface {
	// TrackToReal converts a span of track seconds to the real seconds
	// needed to play it.
	TrackToReal(trackSeconds float64) float64
	// RealToTrack converts a span of real seconds to the track seconds
	// covered in that span.
	RealToTrack(realSeconds float64) float64
}

// LinearWarp plays the track at a constant speed ratio.
// Speed 1 is normal playback, 2 is double speed.
type LinearWarp struct {
	Speed float64
}

func (w LinearWarp) TrackToReal(trackSeconds float64) float64 {
	return trackSeconds / w.Speed
}

func (w LinearWarp) RealToTrack(realSeconds float64) float64 {
	return realSeconds * w.Speed
}

// PlaybackSchedule tracks the current playback position within a selection,
// including loop bounds and time warp.
//
// The schedule is mutated by the buffer-exchange worker as it produces
// frames. Other threads (UI cursor display) may only call TrackTime and
// Done, which read atomically published state; everything else is
// worker-owned and needs no lock.
type PlaybackSchedule struct {
	rate    float64
	t0, t1  float64
	looping bool
	warp    Warp

	trackTime float64 // worker-owned authoritative position

	shared atomic.Uint64 // published trackTime bits for cross-thread readout
	done   atomic.Bool
}

// New creates a schedule for the selection [t0, t1) at the given stream
// sample rate. A nil warp means normal speed.
func New(t0, t1 float64, rate int, looping bool, warp Warp) *PlaybackSchedule {
	if warp == nil {
		warp = LinearWarp{Speed: 1}
	}
	s := &PlaybackSchedule{
		rate:    float64(rate),
		t0:      t0,
		t1:      t1,
		looping: looping,
		warp:    warp,
	}
	s.setTrackTime(t0)
	return s
}

func (s *PlaybackSchedule) setTrackTime(t float64) {
	s.trackTime = t
	s.shared.Store(math.Float64bits(t))
}

// TrackTime returns the most recently published playback position in track
// seconds. Safe to call from any goroutine.
func (s *PlaybackSchedule) TrackTime() float64 {
	return math.Float64frombits(s.shared.Load())
}

// Done reports whether a non-looping schedule has reached the end of its
// selection. Safe to call from any goroutine.
func (s *PlaybackSchedule) Done() bool {
	return s.done.Load()
}

// Looping reports whether the schedule wraps at the selection end.
func (s *PlaybackSchedule) Looping() bool {
	return s.looping
}

// Bounds returns the selection interval [t0, t1).
func (s *PlaybackSchedule) Bounds() (t0, t1 float64) {
	return s.t0, s.t1
}

// RealDuration converts a track-time span to a sample count at the stream
// rate, accounting for the current warp.
func (s *PlaybackSchedule) RealDuration(trackSpan float64) int {
	return int(math.Round(s.warp.TrackToReal(trackSpan) * s.rate))
}

// RealTimeRemaining returns the real seconds of playback left before the
// selection end is reached.
func (s *PlaybackSchedule) RealTimeRemaining() float64 {
	remaining := s.t1 - s.trackTime
	if remaining < 0 {
		remaining = 0
	}
	return s.warp.TrackToReal(remaining)
}

// SliceFrames limits a requested frame count to the number of frames left
// before the selection boundary. The caller produces at most this many frames
// before Advance either wraps (looping) or completes the schedule; any
// shortfall against the original request is padded with silence downstream.
func (s *PlaybackSchedule) SliceFrames(maxFrames int) int {
	if s.done.Load() {
		return 0
	}
	boundary := int(math.Ceil(s.RealTimeRemaining() * s.rate))
	if boundary < maxFrames {
		return boundary
	}
	return maxFrames
}

// Advance moves track time forward by the track-time equivalent of frames
// just produced. When the selection end is crossed while looping, track time
// wraps to the loop start plus the remainder, never exceeding the end first.
// For a non-looping schedule, completed is true exactly once: on the call
// where the cumulative output first reaches the selection end.
func (s *PlaybackSchedule) Advance(frames int) (newTrackTime float64, completed bool) {
	if frames < 0 {
		frames = 0
	}
	t := s.trackTime + s.warp.RealToTrack(float64(frames)/s.rate)

	if t >= s.t1 {
		if s.looping {
			span := s.t1 - s.t0
			if span <= 0 {
				t = s.t0
			} else {
				t = s.t0 + math.Mod(t-s.t1, span)
			}
		} else {
			t = s.t1
			completed = !s.done.Swap(true)
		}
	}

	s.setTrackTime(t)
	return t, completed
}

// Reposition moves the playback position to t, clamped into the selection,
// and clears any completion. Called on the worker after a seek request has
// parked the hardware callback.
func (s *PlaybackSchedule) Reposition(t float64) float64 {
	if t < s.t0 {
		t = s.t0
	}
	if t > s.t1 {
		t = s.t1
	}
	s.setTrackTime(t)
	s.done.Store(false)
	return t
}
