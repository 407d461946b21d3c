// Package playback plays received agent audio strictly in arrival order and
// derives a bar waveform from what was played last.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/babelforce/rtvoice-go/audio"
)

var ErrClosed = errors.New("playback closed")

// Sink renders one chunk. Play blocks until the chunk finished playing or
// ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, c audio.Chunk) error
}

type SinkFunc func(ctx context.Context, c audio.Chunk) error

func (f SinkFunc) Play(ctx context.Context, c audio.Chunk) error {
	return f(ctx, c)
}

type Option func(*pipelineOptions)

type pipelineOptions struct {
	logger     *slog.Logger
	analyzer   *Analyzer
	onSpeaking func(bool)
}

func WithLogger(l *slog.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = l
	}
}

// WithAnalyzer feeds every chunk to a before it is played.
func WithAnalyzer(a *Analyzer) Option {
	return func(o *pipelineOptions) {
		o.analyzer = a
	}
}

// OnSpeaking is called with true when the first chunk starts and with false
// once the queue drained after the last chunk.
func OnSpeaking(fn func(speaking bool)) Option {
	return func(o *pipelineOptions) {
		o.onSpeaking = fn
	}
}

func (o *pipelineOptions) withDefaults() *pipelineOptions {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.onSpeaking == nil {
		o.onSpeaking = func(bool) {}
	}
	return o
}

// Pipeline is a FIFO queue drained by a single worker.
type Pipeline struct {
	sink Sink
	opts *pipelineOptions
	log  *slog.Logger

	mu         sync.Mutex
	queue      []audio.Chunk
	closed     bool
	cancelPlay context.CancelFunc

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(sink Sink, opts ...Option) *Pipeline {
	o := &pipelineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	o.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		sink:   sink,
		opts:   o,
		log:    o.logger.With(slog.String("component", "playback")),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue appends a chunk to the queue.
func (p *Pipeline) Enqueue(c audio.Chunk) error {
	if c.Len() == 0 {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, c)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Clear discards queued chunks and interrupts the chunk being played.
func (p *Pipeline) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	p.queue = nil
	if p.cancelPlay != nil {
		p.cancelPlay()
	}
	return n
}

// Queued returns the number of chunks waiting to be played.
func (p *Pipeline) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close discards all queued audio and waits for the worker to stop.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()

	p.cancel()
	<-p.done

	if p.opts.analyzer != nil {
		p.opts.analyzer.Reset()
	}
	return nil
}

func (p *Pipeline) next() (audio.Chunk, context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.queue) == 0 {
		return audio.Chunk{}, nil, false
	}

	c := p.queue[0]
	p.queue[0] = audio.Chunk{}
	p.queue = p.queue[1:]

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancelPlay = cancel
	return c, ctx, true
}

func (p *Pipeline) played() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelPlay != nil {
		p.cancelPlay()
		p.cancelPlay = nil
	}
}

func (p *Pipeline) run() {
	defer close(p.done)

	speaking := false
	for {
		c, ctx, ok := p.next()
		if !ok {
			if speaking {
				speaking = false
				p.opts.onSpeaking(false)
			}
			select {
			case <-p.ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}

		if !speaking {
			speaking = true
			p.opts.onSpeaking(true)
		}

		if p.opts.analyzer != nil {
			p.opts.analyzer.Feed(c.Samples)
		}

		if err := p.sink.Play(ctx, c); err != nil && ctx.Err() == nil {
			p.log.Warn("failed to play chunk", slog.Any("err", err))
		}
		p.played()
	}
}
