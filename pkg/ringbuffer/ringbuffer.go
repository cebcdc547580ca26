package ringbuffer

import "sync/atomic"

// RingBuffer is a lock-free single-producer, single-consumer bounded circular
// buffer of float32 samples.
//
// It uses two monotonically increasing atomic cursors and a power-of-two
// sized backing array with bitwise masking: no mutexes, no CAS loops, only
// atomic loads and stores. The producer stores the write cursor after copying
// data in; the consumer loads the write cursor before copying data out, so
// the consumer always observes fully written samples.
//
// Thread assignment is strict:
//   - Put and AvailableToPut: producer goroutine only
//   - Get, Discard and AvailableToGet: consumer goroutine only
//
// Overflow and underflow are not errors. Put and Get transfer as many samples
// as fit and report the count; they never block, never allocate.
type RingBuffer struct {
	// The cursors sit on separate cache lines so the producer and consumer
	// do not invalidate each other's line on every update.
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	buf  []float32
	mask uint64
}

// New creates a ring buffer whose capacity is minCapacity rounded up to the
// next power of two. minCapacity must be positive.
func New(minCapacity int) *RingBuffer {
	size := 1
	for size < minCapacity {
		size <<= 1
	}
	return &RingBuffer{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
	}
}

// Capacity reports the fixed sample capacity of the buffer.
func (rb *RingBuffer) Capacity() int {
	return len(rb.buf)
}

// Put appends up to len(p) samples and returns the number actually written,
// which is less than len(p) when the buffer is near full.
// Producer side only.
func (rb *RingBuffer) Put(p []float32) int {
	w := rb.writePos.Load()
	r := rb.readPos.Load()

	free := uint64(len(rb.buf)) - (w - r)
	if free == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > free {
		n = free
	}

	pos := w & rb.mask
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(rb.buf[pos:pos+n], p[:n])
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:n])
	}

	rb.writePos.Store(w + n)
	return int(n)
}

// Get removes up to len(p) samples into p and returns the number actually
// read, which is less than len(p) when the buffer is near empty.
// Consumer side only.
func (rb *RingBuffer) Get(p []float32) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	available := w - r
	if available == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > available {
		n = available
	}

	pos := r & rb.mask
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(p[:n], rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:n], rb.buf[:n-first])
	}

	rb.readPos.Store(r + n)
	return int(n)
}

// Discard drops up to n samples without copying them and returns the number
// dropped. Consumer side only.
func (rb *RingBuffer) Discard(n int) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	available := w - r
	d := uint64(n)
	if d > available {
		d = available
	}
	rb.readPos.Store(r + d)
	return int(d)
}

// AvailableToGet reports the number of samples ready to be read.
// At all times AvailableToGet() + AvailableToPut() == Capacity().
func (rb *RingBuffer) AvailableToGet() int {
	return int(rb.writePos.Load() - rb.readPos.Load())
}

// AvailableToPut reports the free space in samples.
func (rb *RingBuffer) AvailableToPut() int {
	return len(rb.buf) - int(rb.writePos.Load()-rb.readPos.Load())
}

// Reset empties the buffer. Unlike the transfer methods it is NOT safe
// against a concurrently running producer or consumer; it may only be called
// while both sides are quiescent, e.g. between streams or while the hardware
// callback is parked in its seeking state.
func (rb *RingBuffer) Reset() {
	rb.readPos.Store(rb.writePos.Load())
}
