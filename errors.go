package rtvoice

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect is matched by every *ConnectError.
	ErrConnect         = errors.New("connect failed")
	ErrCredential      = errors.New("credential request failed")
	ErrMediaPermission = errors.New("microphone unavailable")
	ErrSignaling       = errors.New("signaling failed")

	// ErrProtocol is logged for inbound frames that cannot be parsed.
	ErrProtocol = errors.New("protocol error")

	ErrBusy                = errors.New("session already active")
	ErrDisconnected        = errors.New("session disconnected")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrTransportClosed     = errors.New("transport closed")
)

type Stage string

const (
	StageCredential Stage = "credential"
	StageMedia      Stage = "media"
	StageSignaling  Stage = "signaling"
)

// ConnectError is returned when one stage of opening a session fails.
type ConnectError struct {
	Stage Stage
	Err   error
}

func NewConnectError(stage Stage, err error) *ConnectError {
	return &ConnectError{Stage: stage, Err: err}
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect [%s]: %s", e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrConnect:
		return true
	case ErrCredential:
		return e.Stage == StageCredential
	case ErrMediaPermission:
		return e.Stage == StageMedia
	case ErrSignaling:
		return e.Stage == StageSignaling
	}
	return false
}

// EndReason tells why a conversation ended. Limits are planned terminations,
// not errors.
type EndReason string

const (
	EndReasonUser           EndReason = "user"
	EndReasonTurnLimit      EndReason = "turn_limit"
	EndReasonDurationLimit  EndReason = "duration_limit"
	EndReasonLanguageChange EndReason = "language_change"
	EndReasonRemoteClosed   EndReason = "remote_closed"
	EndReasonError          EndReason = "error"
)
