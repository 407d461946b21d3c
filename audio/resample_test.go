package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResample(t *testing.T) {
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(i%10) / 10
	}

	down := Resample(in, 24_000, 8_000)
	require.Len(t, down, 160)

	up := Resample(down, 8_000, 16_000)
	require.Len(t, up, 320)

	same := Resample(in, 16_000, 16_000)
	require.Equal(t, in, same)
}

func TestChunkDuration(t *testing.T) {
	c := NewChunk(make([]float32, 480), 24_000)
	require.Equal(t, 20*time.Millisecond, c.Duration())
	require.Equal(t, 160, ResampleChunk(c, 8_000).Len())
	require.Equal(t, time.Duration(0), Chunk{}.Duration())
}
