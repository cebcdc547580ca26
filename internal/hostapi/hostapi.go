package hostapi

import "errors"

var (
	ErrNoDefaultDevice = errors.New("no default device available")
	ErrNoDeviceWithID  = errors.New("no device with specified ID")
	ErrStreamClosed    = errors.New("stream is closed")
)

// DeviceInfo is a raw host-level description of one audio endpoint, produced
// by device enumeration. The device catalog wraps these into immutable
// descriptor snapshots; nothing above the catalog touches this package's
// types directly.
type DeviceInfo struct {
	// Enumeration position at the time of the scan. Not stable across
	// rescans; the ID is the canonical reference.
	Index int

	// Host-API-specific opaque identifier, stable for the device's
	// lifetime. Empty selects the host default device.
	ID string

	// Human readable device name, if the host provides one.
	Name string

	// Maximum channel count in the queried direction.
	Channels int

	// The device's preferred sample rate.
	DefaultRate int
}

// StreamCallback is invoked by the host driver on its real-time thread for
// every hardware buffer. out and in are interleaved float32 sample blocks
// (nil when the stream has no playback or no capture side respectively);
// frames is the per-channel frame count. Implementations must not allocate,
// lock, or perform I/O.
type StreamCallback func(out, in []float32, frames int)

// StreamConfig describes the hardware stream to open. A zero InputChannels
// opens playback-only; a zero OutputChannels opens capture-only.
type StreamConfig struct {
	SampleRate      int
	FramesPerBuffer int
	InputChannels   int
	OutputChannels  int
	InputDeviceID   string // empty = host default
	OutputDeviceID  string // empty = host default
}

// Stream is one open hardware stream.
type Stream interface {
	// Start begins invoking the callback.
	Start() error

	// Stop blocks until the driver guarantees the callback will not be
	// invoked again. The transport relies on this ordering to release
	// buffers safely.
	Stop() error

	// Close releases the underlying device. The stream must be stopped.
	Close() error

	// LatencyFrames reports the measured or estimated hardware round-trip
	// latency in frames, used for capture latency correction.
	LatencyFrames() int
}

// Host abstracts the platform audio API: device enumeration, supported-rate
// queries and stream opening. Implementations wrap miniaudio (malgo) for
// production and a manually ticked dummy for tests, so the engine can be
// constructed with either.
type Host interface {
	InputDevices() ([]DeviceInfo, error)
	OutputDevices() ([]DeviceInfo, error)

	// SupportedRates filters candidates down to the rates the device can
	// open in the given direction.
	SupportedRates(d DeviceInfo, input bool, candidates []int) []int

	OpenStream(cfg StreamConfig, cb StreamCallback) (Stream, error)
}
