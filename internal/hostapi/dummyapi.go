package hostapi

import (
	"sync"
	"sync/atomic"
)

// DummyDevice is one fake endpoint of a DummyHost.
type DummyDevice struct {
	Info  DeviceInfo
	Rates []int
}

// DummyHost is a Host with a configurable device list whose streams are
// driven manually by calling Tick on them. Intended for tests only: it makes
// the hardware callback deterministic instead of driver-timed.
type DummyHost struct {
	Inputs  []DummyDevice
	Outputs []DummyDevice

	mu      sync.Mutex
	streams []*DummyStream
}

func NewDummyHost(inputs, outputs []DummyDevice) *DummyHost {
	return &DummyHost{Inputs: inputs, Outputs: outputs}
}

// NewDefaultDummyHost builds a host with one input and one output device,
// both supporting the given rates.
func NewDefaultDummyHost(channels int, rates ...int) *DummyHost {
	defaultRate := 0
	if len(rates) > 0 {
		defaultRate = rates[0]
	}
	in := DummyDevice{
		Info:  DeviceInfo{ID: "dummy-in", Name: "DummyInput", Channels: channels, DefaultRate: defaultRate},
		Rates: rates,
	}
	out := DummyDevice{
		Info:  DeviceInfo{ID: "dummy-out", Name: "DummyOutput", Channels: channels, DefaultRate: defaultRate},
		Rates: rates,
	}
	return NewDummyHost([]DummyDevice{in}, []DummyDevice{out})
}

func (h *DummyHost) InputDevices() ([]DeviceInfo, error) {
	return deviceInfos(h.Inputs), nil
}

func (h *DummyHost) OutputDevices() ([]DeviceInfo, error) {
	return deviceInfos(h.Outputs), nil
}

func deviceInfos(devices []DummyDevice) []DeviceInfo {
	infos := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = d.Info
		infos[i].Index = i
	}
	return infos
}

func (h *DummyHost) SupportedRates(d DeviceInfo, input bool, candidates []int) []int {
	devices := h.Outputs
	if input {
		devices = h.Inputs
	}
	for _, dev := range devices {
		if dev.Info.ID != d.ID {
			continue
		}
		supported := make([]int, 0, len(candidates))
		for _, rate := range candidates {
			for _, r := range dev.Rates {
				if r == rate {
					supported = append(supported, rate)
					break
				}
			}
		}
		return supported
	}
	return nil
}

func (h *DummyHost) OpenStream(cfg StreamConfig, cb StreamCallback) (Stream, error) {
	if cfg.InputChannels > 0 && len(h.Inputs) == 0 {
		return nil, ErrNoDefaultDevice
	}
	if cfg.OutputChannels > 0 && len(h.Outputs) == 0 {
		return nil, ErrNoDefaultDevice
	}
	if cfg.InputDeviceID != "" && !hasDevice(h.Inputs, cfg.InputDeviceID) {
		return nil, ErrNoDeviceWithID
	}
	if cfg.OutputDeviceID != "" && !hasDevice(h.Outputs, cfg.OutputDeviceID) {
		return nil, ErrNoDeviceWithID
	}

	s := &DummyStream{
		cfg: cfg,
		cb:  cb,
		out: make([]float32, cfg.FramesPerBuffer*cfg.OutputChannels),
		in:  make([]float32, cfg.FramesPerBuffer*cfg.InputChannels),
	}

	h.mu.Lock()
	h.streams = append(h.streams, s)
	h.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far, in order.
func (h *DummyHost) Streams() []*DummyStream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*DummyStream(nil), h.streams...)
}

func hasDevice(devices []DummyDevice, id string) bool {
	for _, d := range devices {
		if d.Info.ID == id {
			return true
		}
	}
	return false
}

// DummyStream is a manually clocked Stream. Each Tick invokes the callback
// exactly once, standing in for one hardware buffer period.
type DummyStream struct {
	cfg StreamConfig
	cb  StreamCallback

	running atomic.Bool
	closed  atomic.Bool

	mu  sync.Mutex
	out []float32
	in  []float32
}

func (s *DummyStream) Start() error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.running.Store(true)
	return nil
}

func (s *DummyStream) Stop() error {
	// Tick holds mu for the duration of the callback, so returning after
	// taking it mirrors a blocking driver stop: no callback runs afterwards.
	s.running.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil
}

func (s *DummyStream) Close() error {
	if s.closed.Swap(true) {
		return ErrStreamClosed
	}
	return nil
}

func (s *DummyStream) LatencyFrames() int {
	return 2 * s.cfg.FramesPerBuffer
}

func (s *DummyStream) Running() bool {
	return s.running.Load()
}

// Tick invokes the callback for one buffer period with silent input and
// returns a copy of the produced output, or nil if the stream is not
// running.
func (s *DummyStream) Tick() []float32 {
	return s.TickWithInput(nil)
}

// TickWithInput invokes the callback for one buffer period feeding the given
// interleaved input samples (padded or truncated to one period) and returns
// a copy of the produced output.
func (s *DummyStream) TickWithInput(input []float32) []float32 {
	if !s.running.Load() || s.closed.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out, in []float32
	if s.cfg.OutputChannels > 0 {
		out = s.out
		for i := range out {
			out[i] = 0
		}
	}
	if s.cfg.InputChannels > 0 {
		in = s.in
		for i := range in {
			in[i] = 0
		}
		copy(in, input)
	}

	s.cb(out, in, s.cfg.FramesPerBuffer)

	if out == nil {
		return nil
	}
	result := make([]float32, len(out))
	copy(result, out)
	return result
}
