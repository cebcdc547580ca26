package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLostIntervalsCoalescePerStall(t *testing.T) {
	rec := newRecordingSchedule(0, 10, 0, 0, 1000, 1)

	// One stall spanning three consecutive buffer periods.
	rec.noteLost(1000, 100)
	rec.noteLost(1100, 100)
	rec.noteLost(1200, 100)
	rec.noteDelivered()

	// A later, separate stall.
	rec.noteLost(5000, 50)
	rec.noteDelivered()

	intervals := rec.lostIntervals()
	require.Len(t, intervals, 2, "consecutive drops form a single interval")
	assert.InDelta(t, 1.0, intervals[0].Start, 1e-9)
	assert.InDelta(t, 0.3, intervals[0].Duration, 1e-9)
	assert.InDelta(t, 5.0, intervals[1].Start, 1e-9)
	assert.InDelta(t, 0.05, intervals[1].Duration, 1e-9)
}

func TestLostIntervalsBoundedWithoutAllocation(t *testing.T) {
	rec := newRecordingSchedule(0, 10, 0, 0, 1000, 1)

	for i := 0; i < maxLostSpans+16; i++ {
		rec.noteLost(int64(i*1000), 10)
		rec.noteDelivered()
	}

	intervals := rec.lostIntervals()
	require.Len(t, intervals, maxLostSpans)
	// Past the bound, further drops extend the last interval instead of
	// growing the list.
	assert.Greater(t, intervals[maxLostSpans-1].Duration, 0.01)
}

func TestZeroDropIsIgnored(t *testing.T) {
	rec := newRecordingSchedule(0, 10, 0, 0, 1000, 1)
	rec.noteLost(100, 0)
	assert.Empty(t, rec.lostIntervals())
}

func TestWriteErrorKeepsFirst(t *testing.T) {
	rec := newRecordingSchedule(0, 10, 0, 0, 1000, 1)

	first := errors.New("disk full")
	rec.noteWriteError(first)
	rec.noteWriteError(errors.New("later failure"))

	assert.Equal(t, first, rec.takeWriteError())
	assert.NoError(t, rec.takeWriteError(), "error is consumed on take")
}

func TestPreRollDiscardInitialisedPerChannel(t *testing.T) {
	rec := newRecordingSchedule(0, 10, 0.5, 0, 48000, 2)
	require.Len(t, rec.preRollDiscard, 2)
	assert.Equal(t, int64(24000), rec.preRollDiscard[0])
	assert.Equal(t, int64(24000), rec.preRollDiscard[1])
}
