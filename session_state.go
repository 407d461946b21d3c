package rtvoice

import (
	"log/slog"
	"time"
)

type State string

const (
	StateIdle                  State = "idle"
	StateRequestingCredentials State = "requesting_credentials"
	StateConnecting            State = "connecting"
	StateLive                  State = "live"
	StateClosing               State = "closing"
)

// Status is a snapshot of the engine.
type Status struct {
	State State
	// Listening and Speaking are only set while Live and never both.
	Listening bool
	Speaking  bool

	SessionID string
	Language  string
	Voice     string
	StartedAt time.Time
	Turns     int

	// PendingTimers counts armed session and highlight timers.
	PendingTimers int
	LastError     error
}

// setState must be called with e.mu held.
func (e *Engine) setState(state State) {
	if e.state == state {
		return
	}
	e.logger.Debug("Engine.setState", slog.Any("from", e.state), slog.Any("to", state))
	e.state = state
}

// status must be called with e.mu held.
func (e *Engine) status() Status {
	st := Status{
		State:         e.state,
		Language:      e.language,
		Voice:         e.voice,
		PendingTimers: int(e.timers.Load()) + e.tools.Pending(),
		LastError:     e.lastError,
	}
	if s := e.current; s != nil {
		st.SessionID = s.id
		st.Language = s.language
		st.Voice = s.voice
		st.Turns = s.turns
		st.StartedAt = s.startedAt
		if e.state == StateLive {
			st.Speaking = s.speaking
			st.Listening = s.listening && !s.speaking
		}
	}
	return st
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status()
}
