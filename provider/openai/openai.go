// Package openai speaks the OpenAI Realtime event protocol.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/proto"
)

const transcriptionModel = "whisper-1"

var ErrMalformedEvent = errors.New("malformed realtime event")

// Dialect implements rtvoice.Dialect for the OpenAI Realtime API.
type Dialect struct{}

func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string {
	return "openai"
}

// Opening sends nothing; the server starts with session.created.
func (d *Dialect) Opening(rtvoice.SessionParams) []any {
	return nil
}

func (d *Dialect) Configure(p rtvoice.SessionParams) []any {
	cfg := p.Config

	tools := make([]tool, 0, len(p.Tools))
	for _, decl := range p.Tools {
		tools = append(tools, tool{
			Type:        "function",
			Name:        decl.Name,
			Description: decl.Description,
			Parameters:  decl.JSONSchema(),
		})
	}

	s := session{
		Modalities:        []string{"audio", "text"},
		Instructions:      instructions(cfg.Instructions, p.Language),
		Voice:             p.Voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		InputAudioTranscription: &transcription{
			Model:    transcriptionModel,
			Language: baseLanguage(p.Language),
		},
		TurnDetection: &turnDetection{
			Type:              "server_vad",
			Threshold:         cfg.VAD.Threshold,
			PrefixPaddingMs:   cfg.VAD.PrefixPadding.Milliseconds(),
			SilenceDurationMs: cfg.VAD.SilenceDuration.Milliseconds(),
		},
		Tools: tools,
	}
	if len(tools) > 0 {
		s.ToolChoice = "auto"
	}

	return []any{sessionUpdate{Type: "session.update", Session: s}}
}

func (d *Dialect) AudioEnvelope(payload string) any {
	return audioAppend{Type: "input_audio_buffer.append", Audio: payload}
}

// ToolResponses returns one function_call_output per call followed by a
// single response.create.
func (d *Dialect) ToolResponses(res []proto.ToolCallResponse) []any {
	if len(res) == 0 {
		return nil
	}
	out := make([]any, 0, len(res)+1)
	for _, r := range res {
		out = append(out, itemCreate{
			Type: "conversation.item.create",
			Item: item{Type: "function_call_output", CallID: r.ID, Output: r.Result},
		})
	}
	return append(out, responseCreate{Type: "response.create"})
}

func (d *Dialect) Utterance(text string) []any {
	return []any{responseCreate{
		Type: "response.create",
		Response: &responseOptions{
			Instructions: fmt.Sprintf("Say exactly the following to the user, then wait for their answer: %q", text),
		},
	}}
}

func (d *Dialect) Parse(data []byte) ([]proto.ControlEvent, error) {
	var evt serverEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	switch evt.Type {
	case "session.created":
		ack := proto.SetupAck{}
		if evt.Session != nil {
			ack.SessionID = evt.Session.ID
		}
		return []proto.ControlEvent{ack}, nil

	case "response.audio.delta", "response.output_audio.delta":
		return []proto.ControlEvent{proto.AudioDelta{Payload: evt.Delta}}, nil

	case "response.audio_transcript.delta", "response.output_audio_transcript.delta":
		return []proto.ControlEvent{proto.TranscriptDelta{Role: proto.RoleAgent, Text: evt.Delta}}, nil

	case "response.audio_transcript.done", "response.output_audio_transcript.done":
		return []proto.ControlEvent{proto.TranscriptDone{Role: proto.RoleAgent, Text: evt.Transcript}}, nil

	case "conversation.item.input_audio_transcription.delta":
		return []proto.ControlEvent{proto.TranscriptDelta{Role: proto.RoleUser, Text: evt.Delta}}, nil

	case "conversation.item.input_audio_transcription.completed":
		return []proto.ControlEvent{proto.TranscriptDone{Role: proto.RoleUser, Text: evt.Transcript}}, nil

	case "input_audio_buffer.speech_started":
		// the user talks over the agent; queued agent audio is stale
		return []proto.ControlEvent{proto.SpeechStarted{}, proto.Interrupted{}}, nil

	case "input_audio_buffer.speech_stopped":
		return []proto.ControlEvent{proto.SpeechStopped{}}, nil

	case "response.done":
		return parseResponseDone(evt.Response)

	case "error":
		if evt.Error == nil {
			return nil, fmt.Errorf("%w: error event without body", ErrMalformedEvent)
		}
		return []proto.ControlEvent{proto.NewError(evt.Error.Code, evt.Error.Type, evt.Error.Message)}, nil
	}

	return nil, nil
}

// parseResponseDone turns function calls into one batch. A response carrying
// calls is not a finished turn; the model answers after the tool outputs.
func parseResponseDone(res *serverResponse) ([]proto.ControlEvent, error) {
	if res == nil {
		return []proto.ControlEvent{proto.TurnComplete{}}, nil
	}

	var (
		calls []proto.ToolCallRequest
		errs  []error
	)
	for _, out := range res.Output {
		if out.Type != "function_call" {
			continue
		}
		req := proto.ToolCallRequest{ID: out.CallID, Name: out.Name}
		if strings.TrimSpace(out.Arguments) != "" {
			if err := json.Unmarshal([]byte(out.Arguments), &req.Params); err != nil {
				errs = append(errs, fmt.Errorf("%w: arguments of %s: %w", ErrMalformedEvent, out.CallID, err))
			}
		}
		calls = append(calls, req)
	}

	if len(calls) == 0 {
		return []proto.ControlEvent{proto.TurnComplete{}}, nil
	}
	return []proto.ControlEvent{proto.ToolCalls{Calls: calls}}, errors.Join(errs...)
}

func instructions(base, language string) string {
	if language == "" {
		return base
	}
	hint := fmt.Sprintf("Always speak with the user in the language with code %q.", language)
	if base == "" {
		return hint
	}
	return base + "\n\n" + hint
}

// baseLanguage reduces a locale like de-DE to the ISO-639-1 code.
func baseLanguage(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return strings.ToLower(code[:i])
	}
	return strings.ToLower(code)
}

var _ rtvoice.Dialect = &Dialect{}
