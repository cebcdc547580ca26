package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/waveline-audio/waveline/internal/devicecatalog"
	"github.com/waveline-audio/waveline/internal/hostapi"
	"github.com/waveline-audio/waveline/internal/mixer"
	"github.com/waveline-audio/waveline/internal/schedule"
	"github.com/waveline-audio/waveline/internal/trackio"
	"github.com/waveline-audio/waveline/pkg/frame"
	"github.com/waveline-audio/waveline/pkg/ringbuffer"
)

// Engine is the real-time audio I/O core: it owns the hardware callback
// state machine, the ring buffers between the callback and the
// buffer-exchange worker, the playback schedule and the capture
// bookkeeping. One Engine serves one stream at a time; construct as many
// engines as needed (there is no global instance).
//
// Thread roles are fixed for the life of a stream: the host driver invokes
// audioCallback on its real-time thread; the worker goroutine exchanges
// bulk data with track storage; the application thread calls the control
// surface (StartStream, StopStream, SeekStream, ...). The control mutex is
// never taken on the callback path.
type Engine struct {
	logger *slog.Logger

	host    hostapi.Host
	catalog *devicecatalog.Catalog
	store   trackio.Store

	events *eventBus

	// mu serializes the control surface. Callback and worker never take it.
	mu sync.Mutex

	// Stream identity and state machine.
	token     atomic.Int64
	lastToken int64
	state     atomic.Int32 // streamState

	// Cross-thread single-flag signals, set on one thread and polled on
	// another.
	paused       atomic.Bool
	seekPending  atomic.Bool
	seekTarget   atomic.Uint64 // float64 bits
	callbackDone atomic.Bool

	// Running counters maintained by the callback.
	samplesPlayed   atomic.Int64
	samplesCaptured atomic.Int64
	underflowCount  atomic.Int64
	overflowCount   atomic.Int64
	inLevel         atomic.Uint32 // float32 bits
	outLevel        atomic.Uint32

	// Per-stream wiring, owned by the control surface between Start and
	// Stop. The callback only touches the preallocated buffers below.
	stream          hostapi.Stream
	monitorStream   hostapi.Stream
	rate            int
	framesPerBuffer int
	playbackRings   []*ringbuffer.RingBuffer // one per output channel
	captureRings    []*ringbuffer.RingBuffer // one per input channel
	sched           *schedule.PlaybackSchedule
	mix             *mixer.Mixer
	tracks          TransportTracks
	rec             *recordingSchedule
	lastLost        []LostInterval

	playbackDeviceName string
	recordDeviceName   string

	// Worker pacing thresholds in frames.
	playbackQueueMin       int
	playbackFramesToCopy   int
	minCaptureFramesToCopy int

	// Preallocated planar scratch for the callback; no allocation happens
	// once the stream is open.
	playScratch []frame.PCMFrame
	capScratch  []frame.PCMFrame

	// Worker-side staging buffer for draining capture rings to storage.
	capBatch []float32

	workerDone chan struct{}
	workerWG   sync.WaitGroup
}

// streamState is the callback state machine: Priming, Running, Seeking,
// Draining, Stopped, with Idle before and between streams. Held in a single
// atomic cell; every transition is one store.
type streamState int32

const (
	stateIdle streamState = iota
	statePriming
	stateRunning
	stateSeeking
	stateDraining
	stateStopped
)

func (s streamState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePriming:
		return "priming"
	case stateRunning:
		return "running"
	case stateSeeking:
		return "seeking"
	case stateDraining:
		return "draining"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

// New constructs an engine over the given host API and track storage. The
// engine is explicitly owned by the caller and passed to whatever
// orchestration layer needs it.
func New(host hostapi.Host, store trackio.Store) *Engine {
	return &Engine{
		logger:  slog.Default().With("audio engine uuid", uuid.New()),
		host:    host,
		catalog: devicecatalog.New(host),
		store:   store,
		events:  newEventBus(64),
	}
}

// Catalog exposes the device catalog for enumeration and explicit rescans.
func (e *Engine) Catalog() *devicecatalog.Catalog {
	return e.catalog
}

// Events returns the coalesced notification channel: position updates,
// level updates and stream completion.
func (e *Engine) Events() <-chan Event {
	return e.events.ch
}

// SetDevices selects the playback and record devices by name for subsequent
// streams and rate negotiation. Empty names select host defaults.
func (e *Engine) SetDevices(playbackName, recordName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playbackDeviceName = playbackName
	e.recordDeviceName = recordName
}

// IsStreamActive reports whether the given token refers to the currently
// open stream.
func (e *Engine) IsStreamActive(token Token) bool {
	return token != 0 && Token(e.token.Load()) == token
}

// GetStreamTime returns the current playback position in track seconds.
// ok is false when no stream is active.
func (e *Engine) GetStreamTime() (t float64, ok bool) {
	if e.token.Load() == 0 {
		return 0, false
	}
	sched := e.sched
	if sched == nil {
		return 0, false
	}
	return sched.TrackTime(), true
}

// SetPaused suspends or resumes the callback's processing without closing
// the stream. Safe from any non-real-time thread.
func (e *Engine) SetPaused(paused bool) {
	e.paused.Store(paused)
	for _, aux := range e.tracks.Aux {
		aux.SetPaused(paused)
	}
}

func (e *Engine) IsPaused() bool {
	return e.paused.Load()
}

// Underflows reports how many callback invocations found less playback data
// than the hardware demanded.
func (e *Engine) Underflows() int64 {
	return e.underflowCount.Load()
}

// Overflows reports how many callback invocations dropped capture samples
// because a ring buffer was full.
func (e *Engine) Overflows() int64 {
	return e.overflowCount.Load()
}

// LostCaptureIntervals returns the dropout spans of the most recently
// stopped stream, for post-recording reporting.
func (e *Engine) LostCaptureIntervals() []LostInterval {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LostInterval(nil), e.lastLost...)
}

// InputLevel returns the most recent capture peak level in [0, 1].
func (e *Engine) InputLevel() float32 {
	return math.Float32frombits(e.inLevel.Load())
}

// OutputLevel returns the most recent playback peak level in [0, 1].
func (e *Engine) OutputLevel() float32 {
	return math.Float32frombits(e.outLevel.Load())
}

// currentState reads the callback state machine.
func (e *Engine) currentState() streamState {
	return streamState(e.state.Load())
}
