package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhire/go-interview-client/pkg/audio"
)

func TestInt16LERoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}

	b := audio.Int16ToLE(samples)
	require.Len(t, b, len(samples)*2)
	assert.Equal(t, samples, audio.LEToInt16(b))
}

func TestFloat32ToInt16ClampsAndRounds(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1.0, -1.0, 2.0, -2.0}
	out := audio.Float32ToInt16(in)

	assert.Equal(t, int16(0), out[0])
	assert.Equal(t, int16(16384), out[1]) // round(0.5*32767) = 16384
	assert.Equal(t, int16(-16384), out[2])
	assert.Equal(t, int16(32767), out[3])
	assert.Equal(t, int16(-32767), out[4])
	assert.Equal(t, int16(32767), out[5], "over-range input clamps")
	assert.Equal(t, int16(-32767), out[6])
}

func TestRMSOfKnownSignal(t *testing.T) {
	square := make([]float32, 1000)
	for i := range square {
		square[i] = 0.5
		if i%2 == 1 {
			square[i] = -0.5
		}
	}

	assert.InDelta(t, 0.5, audio.RMS(square), 1e-6)
	assert.Zero(t, audio.RMS(nil))
}
