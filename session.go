package rtvoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/playback"
	"github.com/babelforce/rtvoice-go/proto"
)

type signal int

const (
	sigDurationLimit signal = iota
	sigGreeting
)

// Session is one live connection. It is owned by the Engine slot and never
// reused after teardown.
type Session struct {
	id       string
	engine   *Engine
	language string
	voice    string
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks the connect phase, the teardown and every session goroutine.
	wg       sync.WaitGroup
	released chan struct{}
	signals  chan signal

	observer   *audio.Observer
	analyzer   *playback.Analyzer
	transcript *Transcript

	// guarded by engine.mu
	conn          Connection
	playback      *playback.Pipeline
	remoteID      string
	closing       bool
	live          bool
	listening     bool
	speaking      bool
	turns         int
	startedAt     time.Time
	durationTimer *time.Timer
	greetingTimer *time.Timer
}

func newSession(e *Engine, language, voice string) *Session {
	id := proto.ID()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       id,
		engine:   e,
		language: language,
		voice:    voice,
		logger: e.opts.logger.With(
			slog.String("component", "session"),
			slog.String("id", id),
		),
		ctx:        ctx,
		cancel:     cancel,
		released:   make(chan struct{}),
		signals:    make(chan signal),
		observer:   &audio.Observer{},
		analyzer:   playback.NewAnalyzer(e.cfg.Waveform.Bars, playback.DefaultWindowSize),
		transcript: NewTranscript(),
	}

	s.wg.Add(2)
	go func() {
		s.wg.Wait()
		close(s.released)
	}()

	return s
}

func (s *Session) ID() string {
	return s.id
}

// Released is closed once every resource of the session was freed.
func (s *Session) Released() <-chan struct{} {
	return s.released
}

func (s *Session) run() {
	defer s.wg.Done()

	e := s.engine
	frames := s.conn.Frames()
	media := s.conn.Media()
	closed := s.conn.Closed()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-closed:
			if err := s.conn.Err(); err != nil {
				e.fail(s, fmt.Errorf("%w: %w", ErrTransportClosed, err))
			} else {
				e.teardown(s, EndReasonRemoteClosed, ErrTransportClosed)
			}
			return
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			e.handleFrame(s, f)
		case c, ok := <-media:
			if !ok {
				media = nil
				continue
			}
			e.handleAudio(s, c)
		case sig := <-s.signals:
			e.handleSignal(s, sig)
		}
	}
}

// signal hands a timer event to the run loop.
func (s *Session) signal(sig signal) {
	select {
	case s.signals <- sig:
	case <-s.ctx.Done():
	}
}

func (s *Session) send(ctx context.Context, msg any) error {
	if s.engine.opts.debug {
		debugMessage(s.id, msg, "out")
	}
	if err := s.conn.SendControl(ctx, msg); err != nil {
		return fmt.Errorf("send control: %w", err)
	}
	return nil
}

func (s *Session) sendAll(msgs []any) error {
	var errs []error
	for _, msg := range msgs {
		if err := s.send(s.ctx, msg); err != nil {
			errs = append(errs, err)
			if s.ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// stopTimers must be called with engine.mu held.
func (s *Session) stopTimers() {
	s.engine.stopTimer(s.durationTimer)
	s.engine.stopTimer(s.greetingTimer)
	s.durationTimer = nil
	s.greetingTimer = nil
}

func (s *Session) waveformLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.engine.cb.OnWaveform(s.analyzer.Sample())
		}
	}
}
