package playback

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	DefaultWindowSize = 1024

	minDecibels = -90.0
	maxDecibels = -10.0
)

// WaveformSample holds one value in [0,100] per bar.
type WaveformSample []float64

// Analyzer samples the frequency magnitude of the most recently played audio.
// Feed and Sample may be called from different goroutines.
type Analyzer struct {
	bars int
	win  []float64

	mu   sync.Mutex
	ring []float64
	pos  int
	fill int
}

func NewAnalyzer(bars, windowSize int) *Analyzer {
	if bars <= 0 {
		bars = 1
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Analyzer{
		bars: bars,
		win:  window.Hann(windowSize),
		ring: make([]float64, windowSize),
	}
}

func (a *Analyzer) Feed(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) % n
	}
	a.fill = min(n, a.fill+len(samples))
}

// Reset drops all history so Sample returns a flat waveform.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	a.pos = 0
	a.fill = 0
}

// Sample computes the current waveform.
func (a *Analyzer) Sample() WaveformSample {
	out := make(WaveformSample, a.bars)

	a.mu.Lock()
	if a.fill == 0 {
		a.mu.Unlock()
		return out
	}
	n := len(a.ring)
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = a.ring[(a.pos+i)%n] * a.win[i]
	}
	a.mu.Unlock()

	spectrum := fft.FFTReal(frame)
	bins := n / 2
	perBar := max(1, bins/a.bars)

	for b := range out {
		lo := b * perBar
		if lo >= bins {
			break
		}
		hi := min(bins, lo+perBar)

		var sum float64
		for _, c := range spectrum[lo:hi] {
			sum += cmplx.Abs(c)
		}
		mag := sum / float64(hi-lo) / float64(bins)
		out[b] = scale(mag)
	}
	return out
}

func scale(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := (db - minDecibels) / (maxDecibels - minDecibels) * 100
	return math.Max(0, math.Min(100, v))
}
