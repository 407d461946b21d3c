package audio

import (
	"encoding/base64"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodePCM16Scaling(t *testing.T) {
	type tc struct {
		name string
		in   float32
		out  int16
	}

	for _, c := range []tc{
		{name: "zero", in: 0, out: 0},
		{name: "full positive", in: 1, out: 32767},
		{name: "full negative", in: -1, out: -32768},
		{name: "half positive", in: 0.5, out: 16383},
		{name: "half negative", in: -0.5, out: -16384},
		{name: "clamp positive", in: 1.7, out: 32767},
		{name: "clamp negative", in: -3, out: -32768},
	} {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, []int16{c.out}, EncodePCM16([]float32{c.in}))
		})
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	in := make([]float32, 10_000)
	for i := range in {
		in[i] = r.Float32()*2 - 1
	}
	in[0], in[1] = -1, 1

	out := DecodePCM16(EncodePCM16(in))
	require.Len(t, out, len(in))
	for i := range in {
		require.LessOrEqual(t, math.Abs(float64(out[i]-in[i])), 1.0/32768, "sample %d", i)
	}
}

func TestPCM16Bytes(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768}
	data := PCM16Bytes(pcm)
	require.Equal(t, []byte{0, 0, 1, 0, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, data)

	back, err := PCM16FromBytes(data)
	require.NoError(t, err)
	require.Equal(t, pcm, back)

	_, err = PCM16FromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrDecode)
}

func TestBase64RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for _, size := range []int{0, 1, 2, 3, 4, 8189, 8190, 8191, 8192, 16_384, 100_000} {
		data := make([]byte, size)
		_, _ = r.Read(data)

		text := ToBase64(data)
		require.Equal(t, base64.StdEncoding.EncodeToString(data), text, "size %d", size)

		back, err := FromBase64(text)
		require.NoError(t, err)
		require.Equal(t, data, back, "size %d", size)
	}
}

func TestFromBase64Malformed(t *testing.T) {
	for _, in := range []string{"abc", "a$==", "!!!!", "AA==AAAA"} {
		_, err := FromBase64(in)
		require.ErrorIs(t, err, ErrDecode, in)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	c := NewChunk([]float32{0, 0.25, -0.25, 0.99, -1}, 24_000)
	back, err := DecodeChunk(EncodeChunk(c), 24_000)
	require.NoError(t, err)
	require.Equal(t, 24_000, back.SampleRate)
	require.Len(t, back.Samples, 5)
	for i := range c.Samples {
		require.InDelta(t, c.Samples[i], back.Samples[i], 1.0/32768)
	}
}
