// Package rtvoice runs realtime voice conversations with speech-to-speech
// models. An Engine owns at most one session at a time and drives it from
// credential request through teardown.
package rtvoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/playback"
	"github.com/babelforce/rtvoice-go/tools"
)

// Engine is the public surface of the voice agent. All methods are safe for
// concurrent use.
type Engine struct {
	cfg       *config.Config
	opts      *engineOptions
	cb        Callbacks
	transport Transport
	dialect   Dialect
	tools     *tools.Bridge
	decls     []tools.Declaration
	logger    *slog.Logger

	// timers counts armed session timers.
	timers atomic.Int32

	mu        sync.Mutex
	state     State
	language  string
	voice     string
	lastError error
	current   *Session
	// prev is the last torn down session; its resources may still be releasing.
	prev *Session
}

// New creates an engine. The config is copied and must not be changed later.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	o := &engineOptions{}
	withDefaults()(o)
	for _, opt := range opts {
		opt(o)
	}
	o.fillCallbacks()

	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg = cfg.Clone()
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if o.transport == nil || o.dialect == nil {
		return nil, errors.New("transport and dialect are required")
	}
	if o.credentials == nil {
		return nil, errors.New("credential source is required")
	}

	logger := o.logger.With(
		slog.String("component", "engine"),
		slog.String("dialect", o.dialect.Name()),
	)

	return &Engine{
		cfg:       cfg,
		opts:      o,
		cb:        o.callbacks,
		transport: o.transport,
		dialect:   o.dialect,
		tools:     tools.NewBridge(o.toolHost, tools.FromConfig(cfg), tools.WithLogger(o.logger)),
		decls:     tools.Declarations(cfg.Sections),
		logger:    logger,
		state:     StateIdle,
		language:  cfg.Language,
		voice:     cfg.Voice,
	}, nil
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Connect opens a new session. It returns once the transport is open; the
// conversation starts when the remote acknowledges the setup. On failure the
// engine is back in Idle and the error was reported through OnError.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return ErrBusy
	}
	s := newSession(e, e.language, e.voice)
	prev := e.prev
	e.current = s
	e.lastError = nil
	e.setState(StateRequestingCredentials)
	st := e.status()
	e.mu.Unlock()

	e.cb.OnStateChange(st)

	err := e.open(ctx, s, prev)
	s.wg.Done()
	return err
}

func (e *Engine) open(ctx context.Context, s *Session, prev *Session) error {
	log := s.logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// a concurrent disconnect aborts every pending step
	unlink := context.AfterFunc(s.ctx, cancel)
	defer unlink()

	if prev != nil {
		select {
		case <-prev.released:
		case <-ctx.Done():
			return e.abort(s, ctx.Err())
		}
	}

	credential, err := e.opts.credentials.Credential(ctx, s.voice)
	if err != nil {
		return e.abort(s, NewConnectError(StageCredential, err))
	}

	if !e.advance(s, StateConnecting) {
		return ErrDisconnected
	}

	log.Info("opening transport", slog.String("language", s.language), slog.String("voice", s.voice))

	openCtx, openCancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	defer openCancel()

	conn, err := e.transport.Open(openCtx, OpenParams{
		SessionID:  s.id,
		Credential: credential,
		Config:     e.cfg,
		Language:   s.language,
		Voice:      s.voice,
		Source:     e.opts.microphone,
		Envelope:   e.dialect.AudioEnvelope,
		Observer:   s.observer,
		Logger:     log,
	})
	if err != nil {
		var ce *ConnectError
		if !errors.As(err, &ce) {
			err = NewConnectError(StageSignaling, err)
		}
		return e.abort(s, err)
	}

	e.mu.Lock()
	if !e.owns(s) {
		e.mu.Unlock()
		closeConn(conn, log)
		return ErrDisconnected
	}
	s.conn = conn
	s.playback = playback.New(e.opts.sink,
		playback.WithLogger(log),
		playback.WithAnalyzer(s.analyzer),
		playback.OnSpeaking(func(speaking bool) { e.onSpeaking(s, speaking) }),
	)
	s.wg.Add(1)
	e.mu.Unlock()

	go s.run()

	for _, msg := range e.dialect.Opening(e.sessionParams(s)) {
		if err := s.send(s.ctx, msg); err != nil {
			e.fail(s, fmt.Errorf("send opening: %w", err))
			return err
		}
	}

	return nil
}

// abort ends a session that failed before the transport was open.
func (e *Engine) abort(s *Session, err error) error {
	if s.ctx.Err() != nil {
		return ErrDisconnected
	}
	s.logger.Error("connect failed", slog.Any("err", err))
	e.teardown(s, EndReasonError, err)
	return err
}

// advance moves a still current session to state.
func (e *Engine) advance(s *Session, state State) bool {
	e.mu.Lock()
	if !e.owns(s) {
		e.mu.Unlock()
		return false
	}
	e.setState(state)
	st := e.status()
	e.mu.Unlock()

	e.cb.OnStateChange(st)
	return true
}

// Disconnect ends the current session from any state. It always succeeds.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()

	if s == nil {
		return nil
	}
	e.teardown(s, EndReasonUser, nil)
	return nil
}

// ChangeLanguage restarts a running session with a new language. When no
// session exists only the selection is recorded.
func (e *Engine) ChangeLanguage(ctx context.Context, code string) error {
	if !e.cfg.SupportsLanguage(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}

	e.mu.Lock()
	e.language = code
	s := e.current
	e.mu.Unlock()

	if s == nil {
		return nil
	}

	e.logger.Info("changing language", slog.String("language", code), slog.String("session", s.id))
	e.teardown(s, EndReasonLanguageChange, nil)
	return e.Connect(ctx)
}

// SetVoice selects the voice used by the next session.
func (e *Engine) SetVoice(voice string) error {
	if len(e.cfg.Voices) > 0 && !slices.Contains(e.cfg.Voices, voice) {
		return fmt.Errorf("unsupported voice: %q", voice)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voice = voice
	return nil
}

// fail records a transport or remote failure and tears the session down.
func (e *Engine) fail(s *Session, err error) {
	s.logger.Error("session failed", slog.Any("err", err))
	e.teardown(s, EndReasonError, err)
}

// teardown destroys the session slot. Only the first call for a session has
// an effect.
func (e *Engine) teardown(s *Session, reason EndReason, err error) {
	e.mu.Lock()
	if !e.owns(s) {
		e.mu.Unlock()
		return
	}
	s.closing = true
	wasLive := s.live
	e.setState(StateClosing)
	closing := e.status()
	s.stopTimers()
	conn, pb := s.conn, s.playback
	e.mu.Unlock()

	e.cb.OnStateChange(closing)

	s.cancel()
	e.tools.Reset()
	if pb != nil {
		if n := pb.Queued(); n > 0 {
			s.logger.Debug("discarding queued audio", slog.Int("chunks", n))
		}
		_ = pb.Close()
	}
	if conn != nil {
		closeConn(conn, s.logger)
	}
	s.transcript.Reset()
	s.analyzer.Reset()

	e.mu.Lock()
	e.current = nil
	e.prev = s
	if err != nil {
		e.lastError = err
	}
	e.setState(StateIdle)
	idle := e.status()
	e.mu.Unlock()

	s.logger.Info("session ended", slog.String("reason", string(reason)))
	s.wg.Done()

	e.cb.OnStateChange(idle)
	e.cb.OnWaveform(make(playback.WaveformSample, e.cfg.Waveform.Bars))
	if wasLive {
		e.cb.OnConversationEnd(reason)
	}
	if err != nil {
		e.cb.OnError(err)
	}
}

// owns reports whether s is the current session and not yet closing. It must
// be called with e.mu held.
func (e *Engine) owns(s *Session) bool {
	return e.current == s && !s.closing
}

func (e *Engine) sessionParams(s *Session) SessionParams {
	return SessionParams{
		Config:   e.cfg,
		Language: s.language,
		Voice:    s.voice,
		Tools:    e.decls,
	}
}

// afterFunc arms a counted timer.
func (e *Engine) afterFunc(d time.Duration, fn func()) *time.Timer {
	e.timers.Add(1)
	return time.AfterFunc(d, func() {
		e.timers.Add(-1)
		fn()
	})
}

func (e *Engine) stopTimer(t *time.Timer) {
	if t != nil && t.Stop() {
		e.timers.Add(-1)
	}
}

func closeConn(conn Connection, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		log.Warn("failed to close transport", slog.Any("err", err))
	}
}
