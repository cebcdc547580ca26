package trackio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavStore is a Store whose tracks originate from and finalize to WAV files.
//
// Decoded audio is held in an embedded MemoryStore: files are decoded fully
// on load, so ReadSamples during playback never touches the decoder. A
// stereo file loads as two mono tracks, one per channel, mirroring the
// one-ring-buffer-per-channel layout of the engine.
type WavStore struct {
	*MemoryStore
	logger *slog.Logger
}

func NewWavStore() *WavStore {
	return &WavStore{
		MemoryStore: NewMemoryStore(),
		logger:      slog.Default().With("component", "wavstore"),
	}
}

// LoadFile decodes a WAV file into one mono track per channel and returns
// the new track ids in channel order.
func (s *WavStore) LoadFile(path string) ([]TrackID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		s.logger.Error("could not decode audio file", "audioFile", path, "err", decoder.Err())
		return nil, errors.New("invalid wav file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio file: %w", err)
	}

	numChannels := int(decoder.NumChans)
	rate := int(decoder.SampleRate)
	if numChannels <= 0 || rate <= 0 {
		return nil, errors.New("wav file with no channels or zero rate")
	}

	const maxInt16 = float32(math.MaxInt16)
	frames := len(buf.Data) / numChannels
	name := filepath.Base(path)

	ids := make([]TrackID, numChannels)
	channel := make([]float32, frames)
	for ch := 0; ch < numChannels; ch++ {
		for i := 0; i < frames; i++ {
			channel[i] = float32(buf.Data[i*numChannels+ch]) / maxInt16
		}
		trackName := name
		if numChannels > 1 {
			trackName = fmt.Sprintf("%s[%d]", name, ch)
		}
		id := s.CreateTrack(trackName, rate)
		if err := s.SetSamples(id, channel); err != nil {
			return nil, err
		}
		ids[ch] = id
	}

	s.logger.Debug(
		"loaded audio file",
		"audioFile", path,
		"sampleRate", rate,
		"channels", numChannels,
		"frames", frames,
	)

	return ids, nil
}

// SaveFile encodes the given mono tracks as the interleaved channels of one
// 16-bit WAV file. All tracks must share a sample rate; the shortest track
// determines the file length.
func (s *WavStore) SaveFile(path string, ids []TrackID) error {
	if len(ids) == 0 {
		return errors.New("no tracks to save")
	}

	infos := make([]TrackInfo, len(ids))
	frames := int64(math.MaxInt64)
	for i, id := range ids {
		info, err := s.TrackInfo(id)
		if err != nil {
			return err
		}
		if info.Rate != infos[0].Rate && i > 0 {
			return fmt.Errorf("mismatched track rates %d and %d", infos[0].Rate, info.Rate)
		}
		infos[i] = info
		if info.Len < frames {
			frames = info.Len
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	rate := infos[0].Rate
	numChannels := len(ids)
	encoder := wav.NewEncoder(f, rate, 16, numChannels, 1)

	const maxInt16 = float64(math.MaxInt16)
	channel := make([]float32, frames)
	data := make([]int, int(frames)*numChannels)
	for ch, id := range ids {
		if _, err := s.ReadSamples(id, 0, channel); err != nil {
			return err
		}
		for i, v := range channel {
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			data[i*numChannels+ch] = int(float64(v) * maxInt16)
		}
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChannels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to encode captured audio: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}

	s.logger.Info("saved audio file", "audioFile", path, "channels", numChannels, "frames", frames)
	return nil
}
