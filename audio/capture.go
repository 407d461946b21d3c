package audio

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrPermissionDenied is wrapped by sources when microphone access is refused.
var ErrPermissionDenied = errors.New("audio: microphone permission denied")

type readerCapture struct {
	r          io.Reader
	sampleRate int
	buf        []byte
	closeOnce  sync.Once
	closed     chan struct{}
}

// NewReaderCapture reads little-endian PCM16 mono from r.
func NewReaderCapture(r io.Reader, sampleRate int) Capture {
	return &readerCapture{
		r:          r,
		sampleRate: sampleRate,
		closed:     make(chan struct{}),
	}
}

func (c *readerCapture) Read(p []float32) (int, error) {
	select {
	case <-c.closed:
		return 0, io.EOF
	default:
	}

	if cap(c.buf) < len(p)*2 {
		c.buf = make([]byte, len(p)*2)
	}
	buf := c.buf[:len(p)*2]

	n, err := io.ReadFull(c.r, buf)
	n -= n % 2
	if n == 0 {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}

	pcm, _ := PCM16FromBytes(buf[:n])
	copy(p, DecodePCM16(pcm))
	return n / 2, nil
}

func (c *readerCapture) SampleRate() int {
	return c.sampleRate
}

func (c *readerCapture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if closer, ok := c.r.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

// StreamSource shares one long lived PCM16 stream, such as stdin, between
// sessions. Only the most recently opened capture receives data and closing a
// capture never closes the stream.
type StreamSource struct {
	r          io.Reader
	sampleRate int
	pumpOnce   sync.Once

	mu  sync.Mutex
	cur *Buffer
	eof bool
}

func NewStreamSource(r io.Reader, sampleRate int) *StreamSource {
	return &StreamSource{r: r, sampleRate: sampleRate}
}

func (s *StreamSource) Open(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.pumpOnce.Do(func() { go s.pump() })

	// one second of audio
	buf := NewBuffer(s.sampleRate * 2)

	s.mu.Lock()
	if s.cur != nil {
		_ = s.cur.Close()
	}
	s.cur = buf
	if s.eof {
		_ = buf.Close()
	}
	s.mu.Unlock()

	return NewReaderCapture(buf, s.sampleRate), nil
}

func (s *StreamSource) pump() {
	p := make([]byte, 4096)
	for {
		n, err := s.r.Read(p)

		s.mu.Lock()
		cur := s.cur
		if err != nil {
			s.eof = true
			if cur != nil {
				_ = cur.Close()
			}
		}
		s.mu.Unlock()

		if n > 0 && cur != nil {
			// a full buffer drops the overflow
			_, _ = cur.Write(p[:n])
		}
		if err != nil {
			return
		}
	}
}
