package audio

import (
	"context"
	"time"
)

// Chunk is an immutable buffer of mono samples at a fixed sample rate.
type Chunk struct {
	Samples    []float32
	SampleRate int
}

// NewChunk wraps samples into a chunk.
func NewChunk(samples []float32, sampleRate int) Chunk {
	return Chunk{Samples: samples, SampleRate: sampleRate}
}

// Duration returns the playback duration of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Len returns the number of samples.
func (c Chunk) Len() int {
	return len(c.Samples)
}

// Capture is an open microphone stream.
type Capture interface {
	// Read fills p with samples in [-1,1] and blocks until data is available.
	Read(p []float32) (int, error)
	// SampleRate of the captured samples.
	SampleRate() int
	Close() error
}

// Source acquires the microphone. Implementations return an error wrapping
// ErrPermissionDenied when the user refused access.
type Source interface {
	Open(ctx context.Context) (Capture, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(ctx context.Context) (Capture, error)

func (f SourceFunc) Open(ctx context.Context) (Capture, error) {
	return f(ctx)
}
