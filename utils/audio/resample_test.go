package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}

	assert.Equal(t, in, Resample(in, 24000, 24000))
	assert.Equal(t, in, Resample(in, 0, 24000))

	up := Resample(in, 8000, 16000)
	assert.Len(t, up, 8)
	assert.InDelta(t, 0.5, up[1], 1e-6)
	assert.InDelta(t, -1, up[7], 1e-6)

	down := Resample(in, 16000, 8000)
	assert.Equal(t, []float32{0, 0}, down)
}

func TestTrimSilence(t *testing.T) {
	const rate = 1000 // 20 samples per frame
	loud := func(n int) []int16 {
		out := make([]int16, n)
		for i := range out {
			out[i] = 5000
		}
		return out
	}
	quiet := func(n int) []int16 { return make([]int16, n) }

	t.Run("all silence untouched", func(t *testing.T) {
		in := quiet(200)
		assert.Len(t, TrimSilence(in, rate, 100), 200)
	})

	t.Run("long gap is cut with padding", func(t *testing.T) {
		in := append(append(loud(40), quiet(400)...), loud(40)...)
		out := TrimSilence(in, rate, 100)
		// 2 voiced frames, 1 pad frame, 1 pad frame, 2 voiced frames
		assert.Len(t, out, 6*20)
	})

	t.Run("short gap kept", func(t *testing.T) {
		in := append(append(loud(40), quiet(40)...), loud(40)...)
		assert.Len(t, TrimSilence(in, rate, 100), 120)
	})

	t.Run("disabled threshold", func(t *testing.T) {
		in := append(loud(20), quiet(400)...)
		assert.Len(t, TrimSilence(in, rate, 0), 420)
	})
}
