package audio

import (
	"io"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Buffer is a bounded byte FIFO. Read blocks until len(p) bytes are buffered
// or the buffer is closed.
type Buffer struct {
	b      *ringbuffer.RingBuffer
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

func (buf *Buffer) Read(p []byte) (int, error) {
	buf.mu.Lock()
	defer buf.mu.Unlock()

	for buf.b.Length() < len(p) && !buf.closed {
		buf.cond.Wait()
	}

	n := min(len(p), buf.b.Length())
	if n == 0 && buf.closed {
		return 0, io.EOF
	}
	if n > 0 {
		_, _ = buf.b.Read(p[:n])
	}

	return n, nil
}

// Write appends p. When the buffer is full the write is short and
// io.ErrShortWrite is returned.
func (buf *Buffer) Write(p []byte) (int, error) {
	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.closed {
		return 0, io.ErrClosedPipe
	}

	n := min(len(p), buf.b.Free())
	if n > 0 {
		_, _ = buf.b.Write(p[:n])
		buf.cond.Broadcast()
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Len returns the number of buffered bytes.
func (buf *Buffer) Len() int {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return buf.b.Length()
}

// Reset drops all buffered bytes and returns how many were dropped.
func (buf *Buffer) Reset() int {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	n := buf.b.Length()
	buf.b.Reset()
	return n
}

func (buf *Buffer) Close() error {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.closed = true
	buf.cond.Broadcast()
	return nil
}

func NewBuffer(size int) *Buffer {
	b := &Buffer{
		b: ringbuffer.New(size),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Framer cuts a stream of samples into fixed size frames.
type Framer struct {
	rb        *ringbuffer.RingBuffer
	frameSize int
}

// NewFramer creates a framer emitting frameSize samples per frame and holding
// at most capacity samples.
func NewFramer(frameSize, capacity int) *Framer {
	if capacity < frameSize {
		capacity = frameSize
	}
	return &Framer{
		rb:        ringbuffer.New(capacity * 2),
		frameSize: frameSize,
	}
}

// Push appends samples. Samples that do not fit are dropped, oldest frames win.
func (f *Framer) Push(samples []float32) int {
	data := PCM16Bytes(EncodePCM16(samples))
	n := min(len(data), f.rb.Free())
	n -= n % 2
	if n > 0 {
		_, _ = f.rb.Write(data[:n])
	}
	return n / 2
}

// Next returns the next complete frame if one is buffered.
func (f *Framer) Next() ([]float32, bool) {
	if f.rb.Length() < f.frameSize*2 {
		return nil, false
	}
	data := make([]byte, f.frameSize*2)
	if _, err := f.rb.Read(data); err != nil {
		return nil, false
	}
	pcm, err := PCM16FromBytes(data)
	if err != nil {
		return nil, false
	}
	return DecodePCM16(pcm), true
}

// Buffered returns the number of buffered samples.
func (f *Framer) Buffered() int {
	return f.rb.Length() / 2
}
