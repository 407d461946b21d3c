package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is returned when a transport payload cannot be decoded into audio.
var ErrDecode = errors.New("audio: decode failed")

const (
	// base64ChunkSize is the raw byte window encoded per step. It is a multiple
	// of 3 so that no padding appears in the middle of the output.
	base64ChunkSize = 8190
	// base64TextChunkSize is the text window decoded per step (multiple of 4).
	base64TextChunkSize = 8192
)

// EncodePCM16 converts float samples in [-1,1] into signed 16-bit PCM.
// Out of range input is clamped. Negative values scale by 32768 and positive
// values by 32767, which keeps -1 and 1 on the exact ends of the int16 range.
func EncodePCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// DecodePCM16 converts signed 16-bit PCM into float samples.
func DecodePCM16(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// PCM16Bytes serializes samples as little-endian bytes.
func PCM16Bytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCM16FromBytes parses little-endian 16-bit samples.
func PCM16FromBytes(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd pcm16 length %d", ErrDecode, len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out, nil
}

// ToBase64 encodes data with the standard alphabet, one fixed window at a time.
func ToBase64(data []byte) string {
	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(data)))

	buf := make([]byte, base64.StdEncoding.EncodedLen(base64ChunkSize))
	for off := 0; off < len(data); off += base64ChunkSize {
		end := min(off+base64ChunkSize, len(data))
		n := base64.StdEncoding.EncodedLen(end - off)
		base64.StdEncoding.Encode(buf[:n], data[off:end])
		sb.Write(buf[:n])
	}

	return sb.String()
}

// FromBase64 decodes standard base64 text, one fixed window at a time.
func FromBase64(text string) ([]byte, error) {
	if len(text)%4 != 0 {
		return nil, fmt.Errorf("%w: base64 length %d is not a multiple of 4", ErrDecode, len(text))
	}

	out := make([]byte, 0, base64.StdEncoding.DecodedLen(len(text)))
	buf := make([]byte, base64.StdEncoding.DecodedLen(base64TextChunkSize))
	for off := 0; off < len(text); off += base64TextChunkSize {
		end := min(off+base64TextChunkSize, len(text))
		chunk := text[off:end]
		if end < len(text) && strings.Contains(chunk, "=") {
			return nil, fmt.Errorf("%w: padding inside base64 payload at %d", ErrDecode, off)
		}
		n, err := base64.StdEncoding.Decode(buf, []byte(chunk))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = append(out, buf[:n]...)
	}

	return out, nil
}

// EncodeChunk turns a chunk into base64 encoded little-endian PCM16.
func EncodeChunk(c Chunk) string {
	return ToBase64(PCM16Bytes(EncodePCM16(c.Samples)))
}

// DecodeChunk parses base64 encoded little-endian PCM16 into a chunk.
func DecodeChunk(text string, sampleRate int) (Chunk, error) {
	raw, err := FromBase64(text)
	if err != nil {
		return Chunk{}, err
	}
	pcm, err := PCM16FromBytes(raw)
	if err != nil {
		return Chunk{}, err
	}
	return NewChunk(DecodePCM16(pcm), sampleRate), nil
}
