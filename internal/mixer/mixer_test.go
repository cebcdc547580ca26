package mixer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-audio/waveline/internal/trackio"
)

const rate = 44100

func constantTrack(t *testing.T, store *trackio.MemoryStore, value float32, n int) trackio.TrackID {
	t.Helper()
	id := store.CreateTrack("test", rate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	require.NoError(t, store.SetSamples(id, samples))
	return id
}

func TestMixSumsTracksWithGain(t *testing.T) {
	store := trackio.NewMemoryStore()
	a := constantTrack(t, store, 0.5, rate)
	b := constantTrack(t, store, 0.25, rate)

	m := New(store, []TrackSpec{
		{ID: a, Rate: rate, Gain: 1},
		{ID: b, Rate: rate, Gain: 0.5},
	}, 1, rate, 512, 0)

	n := m.Process(512)
	require.Equal(t, 512, n)
	out := m.Buffer(0)
	for i := 0; i < n; i++ {
		assert.InDelta(t, 0.625, out[i], 1e-6)
	}
}

func TestPanFullLeftSilencesRight(t *testing.T) {
	store := trackio.NewMemoryStore()
	id := constantTrack(t, store, 1, rate)

	m := New(store, []TrackSpec{{ID: id, Rate: rate, Gain: 1, Pan: -1}}, 2, rate, 256, 0)
	n := m.Process(256)
	require.Equal(t, 256, n)

	left, right := m.Buffer(0), m.Buffer(1)
	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, left[i], 1e-6)
		assert.InDelta(t, 0.0, right[i], 1e-6)
	}
}

func TestEnvelopeInterpolatesAcrossBlock(t *testing.T) {
	store := trackio.NewMemoryStore()
	id := constantTrack(t, store, 1, rate)

	env := NewEnvelope(
		ControlPoint{Time: 0, Value: 0},
		ControlPoint{Time: 1, Value: 1},
	)
	m := New(store, []TrackSpec{{ID: id, Rate: rate, Gain: 1, Envelope: env}}, 1, rate, rate, 0)

	n := m.Process(rate) // one full second
	require.Equal(t, rate, n)
	out := m.Buffer(0)
	assert.InDelta(t, 0.0, out[0], 1e-3)
	assert.InDelta(t, 0.5, out[rate/2], 1e-3)
	assert.InDelta(t, 1.0, out[rate-1], 1e-3)
}

func TestConsecutiveBlocksAreContiguous(t *testing.T) {
	store := trackio.NewMemoryStore()
	id := store.CreateTrack("ramp", rate)
	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = float32(i)
	}
	require.NoError(t, store.SetSamples(id, samples))

	m := New(store, []TrackSpec{{ID: id, Rate: rate, Gain: 1}}, 1, rate, 256, 0)

	var got []float32
	for i := 0; i < 4; i++ {
		n := m.Process(256)
		require.Equal(t, 256, n)
		got = append(got, m.Buffer(0)[:n]...)
	}
	assert.Equal(t, samples, got)
}

func TestTrackEndYieldsSilence(t *testing.T) {
	store := trackio.NewMemoryStore()
	id := constantTrack(t, store, 1, 100)

	m := New(store, []TrackSpec{{ID: id, Rate: rate, Gain: 1}}, 1, rate, 256, 0)
	n := m.Process(256)
	require.Equal(t, 256, n)

	out := m.Buffer(0)
	assert.InDelta(t, 1.0, out[99], 1e-6)
	for i := 100; i < 256; i++ {
		assert.Zero(t, out[i])
	}
}

type failingReader struct{}

func (failingReader) ReadSamples(trackio.TrackID, int64, []float32) (int, error) {
	return 0, errors.New("disk unavailable")
}

func (failingReader) TrackInfo(trackio.TrackID) (trackio.TrackInfo, error) {
	return trackio.TrackInfo{}, errors.New("disk unavailable")
}

// A failing storage read yields silence for the affected range instead of
// aborting the block.
func TestReadFailureIsLocalizedToSilence(t *testing.T) {
	m := New(failingReader{}, []TrackSpec{{ID: trackio.TrackID{}, Rate: rate, Gain: 1}}, 1, rate, 128, 0)

	n := m.Process(128)
	require.Equal(t, 128, n)
	for _, v := range m.Buffer(0)[:n] {
		assert.Zero(t, v)
	}
}

func TestResamplingPreservesDuration(t *testing.T) {
	const srcRate = 22050
	store := trackio.NewMemoryStore()
	id := store.CreateTrack("low", srcRate)
	samples := make([]float32, srcRate) // one second
	for i := range samples {
		samples[i] = 0.5
	}
	require.NoError(t, store.SetSamples(id, samples))

	m := New(store, []TrackSpec{{ID: id, Rate: srcRate, Gain: 1}}, 1, rate, 512, 0)

	// Resampling preserves duration: one second of source yields roughly
	// one second of audible output at the higher rate, then silence.
	produced := 0
	for i := 0; i < 2*rate/512; i++ {
		n := m.Process(512)
		require.Equal(t, 512, n)
		if v := m.Buffer(0)[256]; v > 0.1 {
			produced += n
		}
	}
	rateF := float64(rate)
	assert.Greater(t, produced, int(0.9*rateF))
	assert.Less(t, produced, int(1.1*rateF))
}

func TestRepositionRewindsCursors(t *testing.T) {
	store := trackio.NewMemoryStore()
	id := store.CreateTrack("ramp", rate)
	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = float32(i)
	}
	require.NoError(t, store.SetSamples(id, samples))

	m := New(store, []TrackSpec{{ID: id, Rate: rate, Gain: 1}}, 1, rate, 256, 0)
	m.Process(256)
	m.Reposition(0)
	n := m.Process(256)
	require.Equal(t, 256, n)
	assert.Equal(t, samples[:256], []float32(m.Buffer(0)[:256]))
}
