package hostapi

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoHost is the production Host backed by miniaudio via malgo.
type MalgoHost struct {
	logger *slog.Logger
	ctx    *malgo.AllocatedContext

	mu  sync.Mutex
	ids map[string]malgo.DeviceID // hex ID string -> raw device id, from last scan
}

func NewMalgoHost() (*MalgoHost, error) {
	logger := slog.Default().With("component", "malgo host")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &MalgoHost{
		logger: logger,
		ctx:    ctx,
		ids:    make(map[string]malgo.DeviceID),
	}, nil
}

// Close releases the miniaudio context. All streams must be closed first.
func (h *MalgoHost) Close() error {
	if err := h.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to uninit audio context: %w", err)
	}
	h.ctx.Free()
	return nil
}

func (h *MalgoHost) InputDevices() ([]DeviceInfo, error) {
	return h.devices(malgo.Capture)
}

func (h *MalgoHost) OutputDevices() ([]DeviceInfo, error) {
	return h.devices(malgo.Playback)
}

func (h *MalgoHost) devices(kind malgo.DeviceType) ([]DeviceInfo, error) {
	infos, err := h.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		key := info.ID.String()
		h.ids[key] = info.ID

		detail, err := h.ctx.DeviceInfo(kind, info.ID, malgo.Shared)
		if err != nil {
			h.logger.Warn("failed to query device detail", "device", info.Name(), "err", err)
			continue
		}

		channels := 0
		for _, f := range detail.Formats {
			if int(f.Channels) > channels {
				channels = int(f.Channels)
			}
		}

		devices = append(devices, DeviceInfo{
			Index:       i,
			ID:          key,
			Name:        info.Name(),
			Channels:    channels,
			DefaultRate: defaultRate(formatRates(detail.Formats)),
		})
	}
	return devices, nil
}

// formatRates collects the distinct native sample rates of a device's data
// formats. A nil result means miniaudio reported no fixed rates (empty format
// list, or a format with rate 0): in shared mode such a device accepts any
// rate via the backend's resampler.
func formatRates(formats []malgo.DataFormat) []int {
	rates := make([]int, 0, len(formats))
	for _, f := range formats {
		if f.SampleRate == 0 {
			return nil
		}
		rate := int(f.SampleRate)
		seen := false
		for _, r := range rates {
			if r == rate {
				seen = true
				break
			}
		}
		if !seen {
			rates = append(rates, rate)
		}
	}
	return rates
}

// defaultRate picks a device's default from its native rates: 48000, then
// 44100, then the highest native rate. Rate-flexible devices default to
// miniaudio's own 48000.
func defaultRate(rates []int) int {
	if len(rates) == 0 {
		return 48000
	}
	best := 0
	for _, r := range rates {
		if r == 48000 {
			return 48000
		}
		if r > best {
			best = r
		}
	}
	for _, r := range rates {
		if r == 44100 {
			return 44100
		}
	}
	return best
}

// SupportedRates keeps the candidate rates matching the device's native data
// formats. A device with no fixed native rate supports every candidate.
func (h *MalgoHost) SupportedRates(d DeviceInfo, input bool, candidates []int) []int {
	kind := malgo.Playback
	if input {
		kind = malgo.Capture
	}

	h.mu.Lock()
	raw, ok := h.ids[d.ID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	detail, err := h.ctx.DeviceInfo(kind, raw, malgo.Shared)
	if err != nil {
		h.logger.Warn("failed to query device rates", "device", d.Name, "err", err)
		return nil
	}

	native := formatRates(detail.Formats)
	if native == nil {
		return append([]int(nil), candidates...)
	}
	supported := make([]int, 0, len(candidates))
	for _, rate := range candidates {
		for _, r := range native {
			if r == rate {
				supported = append(supported, rate)
				break
			}
		}
	}
	return supported
}

func (h *MalgoHost) OpenStream(cfg StreamConfig, cb StreamCallback) (Stream, error) {
	var kind malgo.DeviceType
	switch {
	case cfg.InputChannels > 0 && cfg.OutputChannels > 0:
		kind = malgo.Duplex
	case cfg.InputChannels > 0:
		kind = malgo.Capture
	case cfg.OutputChannels > 0:
		kind = malgo.Playback
	default:
		return nil, fmt.Errorf("stream config with no channels")
	}

	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.InputChannels > 0 {
		deviceConfig.Capture.Format = malgo.FormatF32
		deviceConfig.Capture.Channels = uint32(cfg.InputChannels)
		if cfg.InputDeviceID != "" {
			h.mu.Lock()
			raw, ok := h.ids[cfg.InputDeviceID]
			h.mu.Unlock()
			if !ok {
				return nil, ErrNoDeviceWithID
			}
			deviceConfig.Capture.DeviceID = raw.Pointer()
		}
	}
	if cfg.OutputChannels > 0 {
		deviceConfig.Playback.Format = malgo.FormatF32
		deviceConfig.Playback.Channels = uint32(cfg.OutputChannels)
		if cfg.OutputDeviceID != "" {
			h.mu.Lock()
			raw, ok := h.ids[cfg.OutputDeviceID]
			h.mu.Unlock()
			if !ok {
				return nil, ErrNoDeviceWithID
			}
			deviceConfig.Playback.DeviceID = raw.Pointer()
		}
	}

	s := &malgoStream{
		logger: h.logger,
		cfg:    cfg,
		cb:     cb,
		out:    make([]float32, cfg.FramesPerBuffer*cfg.OutputChannels),
		in:     make([]float32, cfg.FramesPerBuffer*cfg.InputChannels),
	}

	device, err := malgo.InitDevice(h.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	s.device = device

	h.logger.Debug(
		"opened hardware stream",
		"sampleRate", cfg.SampleRate,
		"framesPerBuffer", cfg.FramesPerBuffer,
		"inputChannels", cfg.InputChannels,
		"outputChannels", cfg.OutputChannels,
	)
	return s, nil
}

type malgoStream struct {
	logger *slog.Logger
	cfg    StreamConfig
	cb     StreamCallback
	device *malgo.Device

	// Preallocated float views of the driver's byte buffers. Sized for the
	// configured period; grown only if miniaudio ever delivers a larger
	// buffer, which then happens once.
	out []float32
	in  []float32

	closed bool
}

// onData bridges miniaudio's byte buffers to the engine's float32 callback.
// FormatF32 little-endian is assumed on both sides.
func (s *malgoStream) onData(outputBytes, inputBytes []byte, frameCount uint32) {
	frames := int(frameCount)

	var out, in []float32
	if s.cfg.OutputChannels > 0 {
		n := frames * s.cfg.OutputChannels
		if n > len(s.out) {
			s.out = make([]float32, n)
		}
		out = s.out[:n]
	}
	if s.cfg.InputChannels > 0 {
		n := frames * s.cfg.InputChannels
		if n > len(s.in) {
			s.in = make([]float32, n)
		}
		in = s.in[:n]
		for i := range in {
			in[i] = math.Float32frombits(binary.LittleEndian.Uint32(inputBytes[4*i:]))
		}
	}

	s.cb(out, in, frames)

	for i, v := range out {
		binary.LittleEndian.PutUint32(outputBytes[4*i:], math.Float32bits(v))
	}
}

func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (s *malgoStream) Stop() error {
	if !s.device.IsStarted() {
		return nil
	}
	// malgo's Stop blocks until the device callback has drained.
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	if s.closed {
		return ErrStreamClosed
	}
	s.closed = true
	s.device.Uninit()
	return nil
}

// LatencyFrames estimates the round trip as two hardware periods, matching
// miniaudio's default double buffering.
func (s *malgoStream) LatencyFrames() int {
	return 2 * s.cfg.FramesPerBuffer
}
