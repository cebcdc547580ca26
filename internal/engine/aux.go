package engine

import (
	"sort"
	"sync"
)

// AuxStream is the capability interface for auxiliary synchronized outputs:
// secondary event timelines (device control messages, MIDI-like data) whose
// timestamps derive from the audio stream's clock. Zero or more
// implementations are registered per stream and iterated generically.
//
// All methods are invoked from non-real-time threads: lifecycle calls from
// the transport, Advance from the buffer-exchange worker. Implementations
// must tolerate the audio clock pausing and must never emit out-of-order
// timestamps.
type AuxStream interface {
	// StreamStarted announces the negotiated rate and the stream's start
	// position in track seconds.
	StreamStarted(rate int, startTime float64)

	// Advance supplies the current audio clock in track seconds; the
	// stream emits any events that have become due.
	Advance(streamTime float64)

	// SetPaused suspends or resumes emission; pending events are held
	// while paused.
	SetPaused(paused bool)

	// Rebase moves the clock base after a seek; held events are
	// re-timestamped relative to the new base.
	Rebase(streamTime float64)

	// StreamStopped releases per-stream state.
	StreamStopped()
}

// AuxEvent is one pending item of a TimedEventStream: a payload due at a
// given track time.
type AuxEvent struct {
	Time    float64 // track seconds at which the event is due
	Payload []byte
}

// EmitFunc receives a due event with its final timestamp in stream seconds.
type EmitFunc func(timestamp float64, payload []byte)

// TimedEventStream is a ready-made AuxStream: a queue of track-timed events
// emitted when the audio clock passes them, with a fixed configurable
// latency offset added to every timestamp. Emitted timestamps are forced
// monotonic even across pause and seek.
type TimedEventStream struct {
	latency float64
	emit    EmitFunc

	mu          sync.Mutex
	pending     []AuxEvent
	paused      bool
	active      bool
	base        float64
	lastEmitted float64
}

func NewTimedEventStream(latencyOffset float64, emit EmitFunc) *TimedEventStream {
	return &TimedEventStream{
		latency: latencyOffset,
		emit:    emit,
	}
}

// Schedule queues an event for emission when the audio clock reaches its
// track time. Safe to call at any point in the stream's life.
func (s *TimedEventStream) Schedule(events ...AuxEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, events...)
	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].Time < s.pending[j].Time
	})
}

// Pending reports the number of events still queued.
func (s *TimedEventStream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *TimedEventStream) StreamStarted(rate int, startTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.paused = false
	s.base = startTime
	s.lastEmitted = 0
}

func (s *TimedEventStream) Advance(streamTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.paused {
		return
	}

	emitted := 0
	for _, evt := range s.pending {
		if evt.Time > streamTime {
			break
		}
		// The clock never runs backwards from the consumer's point of
		// view, even if a seek moved the base earlier.
		timestamp := evt.Time + s.latency
		if timestamp < s.lastEmitted {
			timestamp = s.lastEmitted
		}
		s.lastEmitted = timestamp
		if s.emit != nil {
			s.emit(timestamp, evt.Payload)
		}
		emitted++
	}
	s.pending = s.pending[emitted:]
}

func (s *TimedEventStream) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *TimedEventStream) Rebase(streamTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Held events keep their track times; only the base moves. Events now
	// behind the new base will emit on the next Advance, clamped to the
	// monotonic floor.
	s.base = streamTime
}

func (s *TimedEventStream) StreamStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.pending = s.pending[:0]
}
