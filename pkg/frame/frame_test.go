package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterleaveDeinterleave(t *testing.T) {
	left := PCMFrame{1, 2, 3}
	right := PCMFrame{4, 5, 6}

	interleaved := make(PCMFrame, 6)
	Interleave(interleaved, []PCMFrame{left, right}, 3)
	assert.Equal(t, PCMFrame{1, 4, 2, 5, 3, 6}, interleaved)

	outLeft := make(PCMFrame, 3)
	outRight := make(PCMFrame, 3)
	Deinterleave([]PCMFrame{outLeft, outRight}, interleaved, 3)
	assert.Equal(t, left, outLeft)
	assert.Equal(t, right, outRight)
}

func TestInterleavePartialFrames(t *testing.T) {
	src := PCMFrame{1, 2, 3, 4}
	dst := PCMFrame{9, 9, 9, 9}

	Interleave(dst, []PCMFrame{src}, 2)
	assert.Equal(t, PCMFrame{1, 2, 9, 9}, dst, "samples past frames are untouched")
}

func TestSilence(t *testing.T) {
	p := PCMFrame{1, -1, 0.5}
	Silence(p)
	assert.Equal(t, PCMFrame{0, 0, 0}, p)
}

func TestPeak(t *testing.T) {
	assert.Equal(t, float32(0), Peak(nil))
	assert.Equal(t, float32(0.75), Peak(PCMFrame{0.25, -0.75, 0.5}))
}

func TestClamp(t *testing.T) {
	p := PCMFrame{2, -3, 0.5}
	Clamp(p)
	assert.Equal(t, PCMFrame{1, -1, 0.5}, p)
}
