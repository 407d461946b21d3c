package rtvoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/proto"
	"github.com/babelforce/rtvoice-go/tools"
)

var errNoToolHost = errors.New("no tool host configured")

type nopHost struct{}

func (nopHost) Navigate(context.Context, string) error         { return errNoToolHost }
func (nopHost) ScrollToElement(context.Context, string) error  { return errNoToolHost }
func (nopHost) HighlightElement(context.Context, string) error { return errNoToolHost }
func (nopHost) ClearHighlight(context.Context, string) error   { return nil }

var _ tools.Host = nopHost{}

// handleFrame parses one inbound frame and routes its events in order.
// Unparseable frames are logged and skipped.
func (e *Engine) handleFrame(s *Session, f proto.Frame) {
	if e.opts.debug {
		debugFrame(s.id, f.Data, "in")
	}

	events, err := e.dialect.Parse(f.Data)
	if err != nil {
		s.logger.Warn("skipping frame", slog.Any("err", fmt.Errorf("%w: %w", ErrProtocol, err)))
	}

	for _, evt := range events {
		if s.ctx.Err() != nil {
			return
		}
		e.handleEvent(s, evt)
	}
}

func (e *Engine) handleEvent(s *Session, evt proto.ControlEvent) {
	switch evt := evt.(type) {
	case proto.SetupAck:
		e.onSetupAck(s, evt)
	case proto.AudioDelta:
		rate := evt.SampleRate
		if rate == 0 {
			rate = e.cfg.OutputSampleRate
		}
		c, err := audio.DecodeChunk(evt.Payload, rate)
		if err != nil {
			s.logger.Warn("skipping audio delta", slog.Any("err", fmt.Errorf("%w: %w", ErrProtocol, err)))
			return
		}
		e.handleAudio(s, c)
	case proto.TranscriptDelta:
		if s.transcript.Delta(evt.Role, evt.Text) {
			e.cb.OnMessagesUpdate(s.transcript.Messages())
		}
	case proto.TranscriptDone:
		if s.transcript.Done(evt.Role, evt.Text) {
			e.cb.OnMessagesUpdate(s.transcript.Messages())
		}
	case proto.TurnComplete:
		e.onTurnComplete(s)
	case proto.ToolCalls:
		e.onToolCalls(s, evt.Calls)
	case proto.SpeechStarted:
		e.setListening(s, true)
	case proto.SpeechStopped:
		e.setListening(s, false)
	case proto.Interrupted:
		e.mu.Lock()
		pb := s.playback
		e.mu.Unlock()
		if pb != nil {
			n := pb.Clear()
			s.logger.Debug("playback interrupted", slog.Int("discarded", n))
		}
	case *proto.Error:
		e.onRemoteError(s, evt)
	default:
		s.logger.Debug("ignoring event", slog.Any("kind", evt.Kind()))
	}
}

func (e *Engine) onSetupAck(s *Session, ack proto.SetupAck) {
	e.mu.Lock()
	if !e.owns(s) || s.live {
		e.mu.Unlock()
		return
	}
	s.live = true
	s.listening = true
	s.remoteID = ack.SessionID
	s.startedAt = time.Now()
	e.setState(StateLive)

	if d := e.cfg.MaxDuration; d > 0 {
		s.durationTimer = e.afterFunc(d, func() { s.signal(sigDurationLimit) })
	}
	if e.cfg.OpeningLine != "" {
		s.greetingTimer = e.afterFunc(e.cfg.GreetingDelay, func() { s.signal(sigGreeting) })
	}

	s.wg.Add(1)
	go s.waveformLoop(e.cfg.Waveform.RefreshInterval)
	if e.opts.statsEvery > 0 {
		s.wg.Add(1)
		go s.statsLoop(e.opts.statsEvery)
	}

	st := e.status()
	e.mu.Unlock()

	s.logger.Info("session live", slog.String("remote_id", ack.SessionID))

	if err := s.sendAll(e.dialect.Configure(e.sessionParams(s))); err != nil {
		s.logger.Error("failed to configure session", slog.Any("err", err))
	}
	s.conn.StartUplink()

	e.cb.OnStateChange(st)
	e.cb.OnConversationStart(s.id)
}

func (e *Engine) handleAudio(s *Session, c audio.Chunk) {
	e.mu.Lock()
	pb := s.playback
	e.mu.Unlock()
	if pb == nil {
		return
	}

	s.observer.Down.Add(c.Len())
	if err := pb.Enqueue(c); err != nil {
		s.logger.Debug("dropping audio", slog.Any("err", err))
	}
}

func (e *Engine) onSpeaking(s *Session, speaking bool) {
	e.mu.Lock()
	if !e.owns(s) || !s.live {
		e.mu.Unlock()
		return
	}
	s.speaking = speaking
	if !speaking {
		s.listening = true
	}
	st := e.status()
	e.mu.Unlock()

	e.cb.OnStateChange(st)
}

func (e *Engine) setListening(s *Session, listening bool) {
	e.mu.Lock()
	if !e.owns(s) || !s.live || s.listening == listening {
		e.mu.Unlock()
		return
	}
	s.listening = listening
	st := e.status()
	e.mu.Unlock()

	e.cb.OnStateChange(st)
}

func (e *Engine) onTurnComplete(s *Session) {
	e.mu.Lock()
	if !e.owns(s) {
		e.mu.Unlock()
		return
	}
	s.turns++
	turns := s.turns
	st := e.status()
	e.mu.Unlock()

	s.logger.Debug("turn complete", slog.Int("turns", turns))
	e.cb.OnStateChange(st)

	if max := e.cfg.MaxTurns; max > 0 && turns >= max {
		s.logger.Info("turn limit reached", slog.Int("max_turns", max))
		e.teardown(s, EndReasonTurnLimit, nil)
	}
}

// onToolCalls answers a whole batch before returning to the run loop.
func (e *Engine) onToolCalls(s *Session, calls []proto.ToolCallRequest) {
	if len(calls) == 0 {
		return
	}

	responses := e.tools.DispatchAll(s.ctx, calls)
	if err := s.sendAll(e.dialect.ToolResponses(responses)); err != nil {
		s.logger.Error("failed to send tool responses", slog.Int("calls", len(calls)), slog.Any("err", err))
	}
}

func (e *Engine) onRemoteError(s *Session, perr *proto.Error) {
	if perr.Fatal {
		e.fail(s, perr)
		return
	}

	s.logger.Warn("remote reported error", slog.Any("err", perr))

	e.mu.Lock()
	if e.owns(s) {
		e.lastError = perr
	}
	e.mu.Unlock()

	e.cb.OnError(perr)
}

func (e *Engine) handleSignal(s *Session, sig signal) {
	switch sig {
	case sigDurationLimit:
		s.logger.Info("duration limit reached", slog.Duration("max_duration", e.cfg.MaxDuration))
		e.teardown(s, EndReasonDurationLimit, nil)
	case sigGreeting:
		e.mu.Lock()
		s.greetingTimer = nil
		current := e.owns(s)
		e.mu.Unlock()
		if !current {
			return
		}
		if err := s.sendAll(e.dialect.Utterance(e.cfg.OpeningLine)); err != nil {
			s.logger.Error("failed to send opening line", slog.Any("err", err))
		}
	}
}
