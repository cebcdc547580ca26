package trackio

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// TrackID identifies one mono channel of track storage.
type TrackID = uuid.UUID

var ErrUnknownTrack = errors.New("unknown track")

// TrackInfo is an immutable description of one stored track.
type TrackInfo struct {
	ID   TrackID
	Name string
	Rate int
	Len  int64 // length in samples
}

// Reader is the "give me sample buffers for a time range" side of track
// storage. Reads may touch disk and are never issued from the hardware
// callback; the engine only calls them from the buffer-exchange worker.
type Reader interface {
	// ReadSamples copies samples starting at sample offset start into dst
	// and returns the number copied, which is short at the end of the
	// track. A read shorter than dst is not an error.
	ReadSamples(id TrackID, start int64, dst []float32) (int, error)

	TrackInfo(id TrackID) (TrackInfo, error)
}

// Writer is the "accept decoded sample blocks" side of track storage, used
// to append captured audio. Writes may block on disk I/O.
type Writer interface {
	AppendSamples(id TrackID, p []float32) error
}

// Store combines both sides plus track creation.
type Store interface {
	Reader
	Writer
	CreateTrack(name string, rate int) TrackID
}

// StartShifter is an optional Store capability for shifting the recorded
// start position of a track by a sample count. The engine uses it at stream
// stop to apply measured-latency correction to captured tracks.
type StartShifter interface {
	// TrimStart discards n samples from the beginning of the track
	// (leftward shift).
	TrimStart(id TrackID, n int64) error
	// PadStart inserts n samples of silence at the beginning of the track
	// (rightward shift).
	PadStart(id TrackID, n int64) error
}

// MemoryStore is an in-memory Store. It backs unit tests and also serves as
// the staging layer of the WAV store, which decodes whole files up front.
type MemoryStore struct {
	mu     sync.RWMutex
	tracks map[TrackID]*memoryTrack
}

type memoryTrack struct {
	name    string
	rate    int
	samples []float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tracks: make(map[TrackID]*memoryTrack),
	}
}

func (s *MemoryStore) CreateTrack(name string, rate int) TrackID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.tracks[id] = &memoryTrack{name: name, rate: rate}
	return id
}

// SetSamples replaces the content of a track wholesale.
func (s *MemoryStore) SetSamples(id TrackID, p []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.tracks[id]
	if !ok {
		return ErrUnknownTrack
	}
	tr.samples = append(tr.samples[:0], p...)
	return nil
}

func (s *MemoryStore) ReadSamples(id TrackID, start int64, dst []float32) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, ok := s.tracks[id]
	if !ok {
		return 0, ErrUnknownTrack
	}
	if start < 0 || start >= int64(len(tr.samples)) {
		return 0, nil
	}
	return copy(dst, tr.samples[start:]), nil
}

func (s *MemoryStore) AppendSamples(id TrackID, p []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.tracks[id]
	if !ok {
		return ErrUnknownTrack
	}
	tr.samples = append(tr.samples, p...)
	return nil
}

func (s *MemoryStore) TrackInfo(id TrackID) (TrackInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, ok := s.tracks[id]
	if !ok {
		return TrackInfo{}, ErrUnknownTrack
	}
	return TrackInfo{
		ID:   id,
		Name: tr.name,
		Rate: tr.rate,
		Len:  int64(len(tr.samples)),
	}, nil
}

// TrimStart discards n samples from the beginning of a track. Used for
// leftward latency correction of captured audio at stream stop.
func (s *MemoryStore) TrimStart(id TrackID, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.tracks[id]
	if !ok {
		return ErrUnknownTrack
	}
	if n > int64(len(tr.samples)) {
		n = int64(len(tr.samples))
	}
	tr.samples = append(tr.samples[:0], tr.samples[n:]...)
	return nil
}

// PadStart inserts n samples of silence at the beginning of a track. Used
// for rightward latency correction of captured audio at stream stop.
func (s *MemoryStore) PadStart(id TrackID, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.tracks[id]
	if !ok {
		return ErrUnknownTrack
	}
	padded := make([]float32, int64(len(tr.samples))+n)
	copy(padded[n:], tr.samples)
	tr.samples = padded
	return nil
}
