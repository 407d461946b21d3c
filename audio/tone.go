package audio

import (
	"context"
	"io"
	"math"
	"sync"
	"time"
)

type toneCapture struct {
	sampleRate int
	freq       float64
	amplitude  float32
	start      time.Time
	produced   int64
	closeOnce  sync.Once
	closed     chan struct{}
}

// NewToneCapture generates a sine tone paced in real time. A zero frequency
// produces silence. Read unblocks with io.EOF once the capture is closed.
func NewToneCapture(sampleRate int, freq float64) Capture {
	return &toneCapture{
		sampleRate: sampleRate,
		freq:       freq,
		amplitude:  0.3,
		start:      time.Now(),
		closed:     make(chan struct{}),
	}
}

func (c *toneCapture) Read(p []float32) (int, error) {
	due := c.start.Add(time.Duration(c.produced+int64(len(p))) * time.Second / time.Duration(c.sampleRate))
	if wait := time.Until(due); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-c.closed:
			t.Stop()
			return 0, io.EOF
		case <-t.C:
		}
	}

	select {
	case <-c.closed:
		return 0, io.EOF
	default:
	}

	for i := range p {
		if c.freq == 0 {
			p[i] = 0
			continue
		}
		ts := float64(c.produced+int64(i)) / float64(c.sampleRate)
		p[i] = c.amplitude * float32(math.Sin(2*math.Pi*c.freq*ts))
	}
	c.produced += int64(len(p))
	return len(p), nil
}

func (c *toneCapture) SampleRate() int {
	return c.sampleRate
}

func (c *toneCapture) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// ToneSource opens a new tone capture per session.
func ToneSource(sampleRate int, freq float64) Source {
	return SourceFunc(func(ctx context.Context) (Capture, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewToneCapture(sampleRate, freq), nil
	})
}
