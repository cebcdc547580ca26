package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rate = 44100

// A non-looping schedule over [0, 10) must report completion exactly once,
// on the Advance call where cumulative output first reaches the boundary.
func TestNonLoopingCompletesExactlyOnce(t *testing.T) {
	s := New(0, 10, rate, false, nil)

	completions := 0
	advanced := 0
	for advanced < 12*rate {
		_, completed := s.Advance(rate / 2) // half a second per call
		if completed {
			completions++
			assert.Equal(t, 10*rate, advanced+rate/2, "completed at the wrong call")
		}
		advanced += rate / 2
	}

	assert.Equal(t, 1, completions)
	assert.True(t, s.Done())
	assert.Equal(t, 10.0, s.TrackTime())
}

// A looping schedule over [2, 8) must wrap to loop start plus the remainder,
// never exceeding the loop end.
func TestLoopingWrapsWithRemainder(t *testing.T) {
	s := New(2, 8, rate, true, nil)

	for i := 0; i < 100; i++ {
		tt, completed := s.Advance(rate) // one second per call
		assert.False(t, completed, "looping schedule must never complete")
		assert.Less(t, tt, 8.0)
		assert.GreaterOrEqual(t, tt, 2.0)
	}

	// 100 seconds into a 6 second loop: 2 + (100 mod 6) = 6.
	assert.InDelta(t, 6.0, s.TrackTime(), 1e-6)
	assert.False(t, s.Done())
}

func TestLoopWrapLandsOnStartPlusRemainder(t *testing.T) {
	s := New(2, 8, rate, true, nil)
	s.Reposition(7.5)

	tt, _ := s.Advance(rate) // crosses 8 by half a second
	assert.InDelta(t, 2.5, tt, 1e-6)
}

func TestRealDurationAtSpeed(t *testing.T) {
	s := New(0, 10, rate, false, LinearWarp{Speed: 2})

	// Two track seconds at double speed is one real second of samples.
	assert.Equal(t, rate, s.RealDuration(2))

	half := New(0, 10, rate, false, LinearWarp{Speed: 0.5})
	assert.Equal(t, 4*rate, half.RealDuration(2))
}

func TestAdvanceAppliesWarp(t *testing.T) {
	s := New(0, 10, rate, false, LinearWarp{Speed: 2})

	// One real second of frames covers two track seconds at double speed.
	tt, completed := s.Advance(rate)
	assert.False(t, completed)
	assert.InDelta(t, 2.0, tt, 1e-6)
	assert.InDelta(t, 4.0, s.RealTimeRemaining(), 1e-6)
}

// A slice that would cross the end of a non-looping selection is limited to
// the boundary; the caller pads the shortfall with silence.
func TestSliceFramesLimitsAtBoundary(t *testing.T) {
	s := New(0, 1, rate, false, nil)
	s.Reposition(0.99)

	frames := s.SliceFrames(rate)
	require.Greater(t, frames, 0)
	rateF := float64(rate)
	assert.LessOrEqual(t, frames, int(0.011*rateF))

	s.Advance(frames)
	assert.True(t, s.Done())
	assert.Equal(t, 0, s.SliceFrames(rate))
}

func TestRepositionClearsCompletion(t *testing.T) {
	s := New(0, 1, rate, false, nil)
	s.Advance(2 * rate)
	require.True(t, s.Done())

	s.Reposition(0.25)
	assert.False(t, s.Done())
	assert.Equal(t, 0.25, s.TrackTime())

	// Clamped into the selection.
	assert.Equal(t, 1.0, s.Reposition(5))
	assert.Equal(t, 0.0, s.Reposition(-3))
}
