package engine

import "sync"

// LostInterval is a contiguous span of capture time for which no valid
// samples could be delivered (a dropout), in seconds of stream time.
type LostInterval struct {
	Start    float64
	Duration float64
}

// lostSpan is the callback-side representation in sample counts.
type lostSpan struct {
	start    int64
	duration int64
}

// maxLostSpans bounds the callback-side interval list so the callback never
// grows a slice. Past the bound, further dropouts extend the last interval.
const maxLostSpans = 64

// recordingSchedule holds the capture-side bookkeeping of one stream: the
// recording bounds, pre-roll trimming, latency correction and the dropout
// intervals detected by the callback.
//
// The spans slice is written only by the hardware callback within its
// preallocated capacity and read only after the stream has stopped, so it
// needs no synchronization. The write error is shared between the worker
// and StopStream and carries a lock.
type recordingSchedule struct {
	t0, t1  float64
	preRoll float64

	// correction is the latency shift in seconds to apply to captured
	// track positions at stream stop. Negative shifts left.
	correction float64

	rate int

	// preRollDiscard counts the samples still to drop from the head of
	// each capture channel before appending to storage. Worker-owned.
	preRollDiscard []int64

	// Dropout bookkeeping, callback-owned until the stream stops.
	spans    []lostSpan
	spanOpen bool

	mu         sync.Mutex
	writeError error
}

func newRecordingSchedule(t0, t1, preRoll, correction float64, rate, captureChannels int) *recordingSchedule {
	rec := &recordingSchedule{
		t0:             t0,
		t1:             t1,
		preRoll:        preRoll,
		correction:     correction,
		rate:           rate,
		preRollDiscard: make([]int64, captureChannels),
		spans:          make([]lostSpan, 0, maxLostSpans),
	}
	discard := int64(preRoll * float64(rate))
	for i := range rec.preRollDiscard {
		rec.preRollDiscard[i] = discard
	}
	return rec
}

// noteLost records dropped capture samples starting at the given stream
// sample position. Consecutive drops extend the open interval, so a stall
// spanning several buffer periods yields exactly one interval. Callback
// thread only; never allocates beyond the preallocated capacity.
func (rec *recordingSchedule) noteLost(startSample int64, dropped int) {
	if dropped <= 0 {
		return
	}
	if rec.spanOpen || len(rec.spans) == cap(rec.spans) {
		rec.spans[len(rec.spans)-1].duration += int64(dropped)
		rec.spanOpen = true
		return
	}
	rec.spans = append(rec.spans, lostSpan{start: startSample, duration: int64(dropped)})
	rec.spanOpen = true
}

// noteDelivered closes any open dropout interval. Callback thread only.
func (rec *recordingSchedule) noteDelivered() {
	rec.spanOpen = false
}

// lostIntervals converts the recorded spans to seconds. Only valid once the
// stream has stopped.
func (rec *recordingSchedule) lostIntervals() []LostInterval {
	intervals := make([]LostInterval, len(rec.spans))
	for i, s := range rec.spans {
		intervals[i] = LostInterval{
			Start:    float64(s.start) / float64(rec.rate),
			Duration: float64(s.duration) / float64(rec.rate),
		}
	}
	return intervals
}

// noteWriteError keeps the first storage write failure for surfacing at
// StopStream; capture continues despite it.
func (rec *recordingSchedule) noteWriteError(err error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.writeError == nil {
		rec.writeError = err
	}
}

func (rec *recordingSchedule) takeWriteError() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	err := rec.writeError
	rec.writeError = nil
	return err
}
