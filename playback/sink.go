package playback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/babelforce/rtvoice-go/audio"
)

// WriterSink writes little-endian PCM16 to w and paces the writes to real time.
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Play(ctx context.Context, c audio.Chunk) error {
	start := time.Now()
	if _, err := s.w.Write(audio.PCM16Bytes(audio.EncodePCM16(c.Samples))); err != nil {
		return fmt.Errorf("write pcm: %w", err)
	}

	wait := c.Duration() - time.Since(start)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
