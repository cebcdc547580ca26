package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	testCases := []struct {
		requested int
		expected  int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{512, 512},
		{1000, 1024},
		{2048, 2048},
	}

	for _, tc := range testCases {
		rb := New(tc.requested)
		assert.Equal(t, tc.expected, rb.Capacity(), "requested %d", tc.requested)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	rb := New(8)

	in := []float32{1, 2, 3, 4, 5}
	require.Equal(t, 5, rb.Put(in))
	assert.Equal(t, 5, rb.AvailableToGet())
	assert.Equal(t, 3, rb.AvailableToPut())

	out := make([]float32, 5)
	require.Equal(t, 5, rb.Get(out))
	assert.Equal(t, in, out)
	assert.Equal(t, 0, rb.AvailableToGet())
	assert.Equal(t, 8, rb.AvailableToPut())
}

// A Put of more samples than there is room for must write exactly
// AvailableToPut samples and report that count, without blocking.
func TestPutPartialWhenFull(t *testing.T) {
	rb := New(4)

	require.Equal(t, 3, rb.Put([]float32{1, 2, 3}))
	n := rb.Put([]float32{4, 5, 6})
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, rb.AvailableToGet())
	assert.Equal(t, 0, rb.AvailableToPut())
	assert.Equal(t, 0, rb.Put([]float32{7}))

	out := make([]float32, 4)
	require.Equal(t, 4, rb.Get(out))
	assert.Equal(t, []float32{1, 2, 3, 4}, out)
}

func TestGetPartialWhenEmpty(t *testing.T) {
	rb := New(8)
	rb.Put([]float32{1, 2})

	out := make([]float32, 6)
	assert.Equal(t, 2, rb.Get(out))
	assert.Equal(t, 0, rb.Get(out))
}

func TestWrapAround(t *testing.T) {
	rb := New(4)
	out := make([]float32, 4)

	// Move the cursors near the end of the backing array, then transfer a
	// block that straddles the wrap point.
	require.Equal(t, 3, rb.Put([]float32{0, 0, 0}))
	require.Equal(t, 3, rb.Get(out[:3]))

	in := []float32{10, 20, 30, 40}
	require.Equal(t, 4, rb.Put(in))
	require.Equal(t, 4, rb.Get(out))
	assert.Equal(t, in, out)
}

func TestDiscard(t *testing.T) {
	rb := New(8)
	rb.Put([]float32{1, 2, 3, 4, 5})

	assert.Equal(t, 3, rb.Discard(3))
	out := make([]float32, 2)
	require.Equal(t, 2, rb.Get(out))
	assert.Equal(t, []float32{4, 5}, out)
	assert.Equal(t, 0, rb.Discard(10))
}

func TestReset(t *testing.T) {
	rb := New(8)
	rb.Put([]float32{1, 2, 3})
	rb.Reset()
	assert.Equal(t, 0, rb.AvailableToGet())
	assert.Equal(t, 8, rb.AvailableToPut())
}

// The occupancy invariant must hold at every point of an arbitrary
// Put/Get interleaving.
func TestOccupancyInvariant(t *testing.T) {
	rb := New(16)
	scratch := make([]float32, 7)

	for i := 0; i < 1000; i++ {
		rb.Put(scratch[:1+i%7])
		assert.Equal(t, rb.Capacity(), rb.AvailableToGet()+rb.AvailableToPut())
		rb.Get(scratch[:1+(i*3)%7])
		assert.Equal(t, rb.Capacity(), rb.AvailableToGet()+rb.AvailableToPut())
	}
}

// One producer and one consumer running concurrently with no other
// synchronization must transfer every sample exactly once, in order.
func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 1 << 16
	rb := New(256)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		buf := make([]float32, 64)
		next := 0
		for next < total {
			n := len(buf)
			if total-next < n {
				n = total - next
			}
			for i := 0; i < n; i++ {
				buf[i] = float32(next + i)
			}
			put := rb.Put(buf[:n])
			next += put
		}
	}()

	received := make([]float32, 0, total)
	go func() {
		defer wg.Done()
		buf := make([]float32, 48)
		for len(received) < total {
			n := rb.Get(buf)
			received = append(received, buf[:n]...)
		}
	}()

	wg.Wait()

	require.Len(t, received, total)
	for i, v := range received {
		if v != float32(i) {
			t.Fatalf("sample %d: got %v", i, v)
		}
	}
}
