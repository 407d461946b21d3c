package rtvoice

import (
	"context"
	"log/slog"

	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/proto"
	"github.com/babelforce/rtvoice-go/tools"
)

// OpenParams carries everything a transport needs to open one session.
type OpenParams struct {
	SessionID  string
	Credential string
	Config     *config.Config
	Language   string
	Voice      string
	// Source acquires the microphone. Transports release the capture on Close.
	Source audio.Source
	// Envelope wraps a base64 audio payload into a provider control message.
	// Only used by transports that carry audio inline.
	Envelope func(payload string) any
	Observer *audio.Observer
	Logger   *slog.Logger
}

// Connection is an open audio and control channel to the remote endpoint.
type Connection interface {
	SendAudio(ctx context.Context, c audio.Chunk) error
	SendControl(ctx context.Context, msg any) error

	// StartUplink starts streaming microphone audio. Safe to call repeatedly.
	StartUplink()

	// Frames delivers inbound control messages in arrival order.
	Frames() <-chan proto.Frame
	// Media delivers inbound audio for transports with a media track. It is
	// nil for transports that carry audio in control messages.
	Media() <-chan audio.Chunk

	Closed() <-chan struct{}
	// Err returns the failure that closed the connection, nil after Close.
	Err() error

	// Close releases the connection and the microphone. Idempotent.
	Close(ctx context.Context) error
}

// Transport opens connections. Open fails with a *ConnectError.
type Transport interface {
	Open(ctx context.Context, p OpenParams) (Connection, error)
}

type TransportFunc func(ctx context.Context, p OpenParams) (Connection, error)

func (f TransportFunc) Open(ctx context.Context, p OpenParams) (Connection, error) {
	return f(ctx, p)
}

// SessionParams are the per session values a dialect renders into messages.
type SessionParams struct {
	Config   *config.Config
	Language string
	Voice    string
	Tools    []tools.Declaration
}

// Dialect translates between a provider's wire messages and control events.
type Dialect interface {
	Name() string
	// Opening returns the messages sent right after the transport opened.
	Opening(p SessionParams) []any
	// Configure returns the messages sent after the setup acknowledgement.
	Configure(p SessionParams) []any
	// Parse decodes one inbound frame. Frames of no interest yield no events.
	Parse(data []byte) ([]proto.ControlEvent, error)
	AudioEnvelope(payload string) any
	// ToolResponses answers a whole batch of tool calls.
	ToolResponses(res []proto.ToolCallResponse) []any
	// Utterance forces the agent to say text.
	Utterance(text string) []any
}
