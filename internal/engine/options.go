package engine

import (
	"math"

	"github.com/spf13/viper"

	"github.com/waveline-audio/waveline/internal/mixer"
	"github.com/waveline-audio/waveline/internal/schedule"
	"github.com/waveline-audio/waveline/internal/trackio"
)

// Token identifies one open stream instance. Tokens increase monotonically
// and are never reused; 0 means no stream (or input monitoring, which runs
// without a token).
type Token int64

// TransportTracks is the set of tracks a stream works on, captured at
// StartStream time and immutable for the duration of the stream. The engine
// never mutates the set itself; it only appends captured sample blocks to
// the capture tracks.
type TransportTracks struct {
	// Playback tracks mixed into the output.
	Playback []mixer.TrackSpec

	// Capture tracks receiving recorded audio, one per capture channel.
	Capture []trackio.TrackID

	// PreRoll is the subset of playback track ids audible during the
	// pre-roll lead-in. Empty means all playback tracks are.
	PreRoll []trackio.TrackID

	// Aux streams kept in sync with this stream's audio clock.
	Aux []AuxStream
}

// Options are the per-stream knobs, normally snapshotted from preferences at
// StartStream time and never re-read per buffer.
type Options struct {
	Rate            int // requested rate; negotiation may pick another
	FramesPerBuffer int

	PlaybackDeviceName string // empty = default device
	RecordDeviceName   string

	PlaybackChannels int
	RecordChannels   int

	// Ring buffer sizing. LatencyUnit is "ms" or "samples".
	LatencyDuration float64
	LatencyUnit     string

	// Capture latency correction in milliseconds, usually negative
	// (recorded audio arrives late and is shifted leftwards). Zero means
	// use the stream's measured hardware latency.
	LatencyCorrection float64

	Looping bool
	Speed   float64
	Warp    schedule.Warp

	// PreRoll is the lead-in in seconds played before the recording start
	// point without being recorded.
	PreRoll float64
}

const (
	defaultFramesPerBuffer = 512
	defaultLatencyMs       = 100.0
)

// withDefaults fills the zero values of an Options with usable settings.
func (o Options) withDefaults() Options {
	if o.FramesPerBuffer <= 0 {
		o.FramesPerBuffer = defaultFramesPerBuffer
	}
	if o.PlaybackChannels <= 0 {
		o.PlaybackChannels = 2
	}
	if o.Speed <= 0 {
		o.Speed = 1
	}
	if o.LatencyDuration <= 0 {
		o.LatencyDuration = defaultLatencyMs
		o.LatencyUnit = "ms"
	}
	return o
}

// latencyFrames converts the latency preference to a sample count at the
// negotiated rate.
func (o Options) latencyFrames(rate int) int {
	if o.LatencyUnit == "samples" {
		return int(math.Round(o.LatencyDuration))
	}
	return int(math.Round(o.LatencyDuration / 1000 * float64(rate)))
}

// correctionSeconds converts the latency correction preference to seconds.
func (o Options) correctionSeconds() float64 {
	return o.LatencyCorrection / 1000
}

// OptionsFromPreferences snapshots the stream options from the viper
// preference keys. Called once per StartStream, never per buffer.
func OptionsFromPreferences() Options {
	return Options{
		Rate:               viper.GetInt("samplerate"),
		FramesPerBuffer:    viper.GetInt("framesperbuffer"),
		PlaybackDeviceName: viper.GetString("playbackdevice"),
		RecordDeviceName:   viper.GetString("recorddevice"),
		PlaybackChannels:   viper.GetInt("playbackchannels"),
		RecordChannels:     viper.GetInt("recordchannels"),
		LatencyDuration:    viper.GetFloat64("latencyduration"),
		LatencyUnit:        viper.GetString("latencyunit"),
		LatencyCorrection:  viper.GetFloat64("latencycorrection"),
		Speed:              1,
	}
}
