// Package proto defines the provider independent control events exchanged
// between a voice session and the remote conversational endpoint.
package proto

import "time"

type Kind string

const (
	KindSetupAck         Kind = "setup.ack"
	KindAudioDelta       Kind = "audio.delta"
	KindTranscriptDelta  Kind = "transcript.delta"
	KindTranscriptDone   Kind = "transcript.done"
	KindTurnComplete     Kind = "turn.complete"
	KindToolCallRequest  Kind = "tool_call.request"
	KindToolCallResponse Kind = "tool_call.response"
	KindSpeechStarted    Kind = "speech.started"
	KindSpeechStopped    Kind = "speech.stopped"
	KindInterrupted      Kind = "interrupted"
	KindError            Kind = "error"
)

// ControlEvent is one parsed inbound control message.
type ControlEvent interface {
	Kind() Kind
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// SetupAck is sent by the remote once the session accepts configuration.
type SetupAck struct {
	SessionID string
}

func (SetupAck) Kind() Kind { return KindSetupAck }

// AudioDelta carries a base64 encoded PCM16 audio payload.
type AudioDelta struct {
	Payload    string
	SampleRate int
}

func (AudioDelta) Kind() Kind { return KindAudioDelta }

type TranscriptDelta struct {
	Role Role
	Text string
}

func (TranscriptDelta) Kind() Kind { return KindTranscriptDelta }

// TranscriptDone finalizes the open transcript message of Role. A non empty
// Text replaces the accumulated deltas.
type TranscriptDone struct {
	Role Role
	Text string
}

func (TranscriptDone) Kind() Kind { return KindTranscriptDone }

type TurnComplete struct{}

func (TurnComplete) Kind() Kind { return KindTurnComplete }

// ToolCallRequest is a single function call issued by the model.
type ToolCallRequest struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ToolCalls is a batch of calls issued together. All of them must be answered
// before the model continues.
type ToolCalls struct {
	Calls []ToolCallRequest
}

func (ToolCalls) Kind() Kind { return KindToolCallRequest }

// ToolCallResponse answers exactly one ToolCallRequest.
type ToolCallResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result string `json:"result"`
	Failed bool   `json:"failed,omitempty"`
}

func (ToolCallResponse) Kind() Kind { return KindToolCallResponse }

type SpeechStarted struct{}

func (SpeechStarted) Kind() Kind { return KindSpeechStarted }

type SpeechStopped struct{}

func (SpeechStopped) Kind() Kind { return KindSpeechStopped }

// Interrupted signals that the user barged in and pending agent audio is stale.
type Interrupted struct{}

func (Interrupted) Kind() Kind { return KindInterrupted }

// Frame is a raw inbound control message as received from the transport.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

var (
	_ ControlEvent = SetupAck{}
	_ ControlEvent = AudioDelta{}
	_ ControlEvent = TranscriptDelta{}
	_ ControlEvent = TranscriptDone{}
	_ ControlEvent = TurnComplete{}
	_ ControlEvent = ToolCalls{}
	_ ControlEvent = ToolCallResponse{}
	_ ControlEvent = SpeechStarted{}
	_ ControlEvent = SpeechStopped{}
	_ ControlEvent = Interrupted{}
	_ ControlEvent = &Error{}
)
