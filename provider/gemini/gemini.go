// Package gemini speaks the Gemini Live bidirectional streaming protocol.
package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/proto"
	"github.com/babelforce/rtvoice-go/tools"
	"google.golang.org/genai"
)

var ErrMalformedMessage = errors.New("malformed live message")

// Dialect implements rtvoice.Dialect for the Gemini Live API.
type Dialect struct {
	// InputSampleRate is announced in the mime type of uplink audio.
	InputSampleRate int
}

func New(inputSampleRate int) *Dialect {
	if inputSampleRate <= 0 {
		inputSampleRate = 16_000
	}
	return &Dialect{InputSampleRate: inputSampleRate}
}

func (d *Dialect) Name() string {
	return "gemini"
}

// Opening sends the setup message. The server answers with setupComplete.
func (d *Dialect) Opening(p rtvoice.SessionParams) []any {
	cfg := p.Config

	setup := &genai.LiveClientSetup{
		Model: cfg.Model,
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []genai.Modality{genai.ModalityAudio},
			SpeechConfig: &genai.SpeechConfig{
				LanguageCode: p.Language,
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: p.Voice},
				},
			},
		},
		RealtimeInputConfig: &genai.RealtimeInputConfig{
			AutomaticActivityDetection: &genai.AutomaticActivityDetection{
				PrefixPaddingMs:   genai.Ptr(int32(cfg.VAD.PrefixPadding.Milliseconds())),
				SilenceDurationMs: genai.Ptr(int32(cfg.VAD.SilenceDuration.Milliseconds())),
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}

	if cfg.Instructions != "" {
		setup.SystemInstruction = genai.NewContentFromText(cfg.Instructions, genai.RoleUser)
	}
	if len(p.Tools) > 0 {
		setup.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(p.Tools)}}
	}

	return []any{genai.LiveClientMessage{Setup: setup}}
}

// Configure sends nothing; everything went out with the setup.
func (d *Dialect) Configure(rtvoice.SessionParams) []any {
	return nil
}

func (d *Dialect) AudioEnvelope(payload string) any {
	return realtimeInput{
		RealtimeInput: realtimeAudio{
			Audio: blob{
				Data:     payload,
				MIMEType: fmt.Sprintf("audio/pcm;rate=%d", d.InputSampleRate),
			},
		},
	}
}

// ToolResponses answers the whole batch in a single toolResponse message.
func (d *Dialect) ToolResponses(res []proto.ToolCallResponse) []any {
	if len(res) == 0 {
		return nil
	}

	out := &genai.LiveClientToolResponse{}
	for _, r := range res {
		key := "result"
		if r.Failed {
			key = "error"
		}
		out.FunctionResponses = append(out.FunctionResponses, &genai.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: map[string]any{key: r.Result},
		})
	}
	return []any{genai.LiveClientMessage{ToolResponse: out}}
}

func (d *Dialect) Utterance(text string) []any {
	prompt := fmt.Sprintf("Greet the user by saying exactly: %q", text)
	return []any{genai.LiveClientMessage{
		ClientContent: &genai.LiveClientContent{
			Turns:        []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
			TurnComplete: true,
		},
	}}
}

func (d *Dialect) Parse(data []byte) ([]proto.ControlEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var events []proto.ControlEvent

	if msg.SetupComplete != nil {
		events = append(events, proto.SetupAck{})
	}

	if c := msg.ServerContent; c != nil {
		if c.Interrupted {
			events = append(events, proto.Interrupted{})
		}
		if c.InputTranscription != nil {
			events = append(events, proto.TranscriptDelta{Role: proto.RoleUser, Text: c.InputTranscription.Text})
		}
		if c.ModelTurn != nil {
			for _, part := range c.ModelTurn.Parts {
				if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}
				events = append(events, proto.AudioDelta{
					Payload:    part.InlineData.Data,
					SampleRate: sampleRate(part.InlineData.MIMEType),
				})
			}
		}
		if c.OutputTranscription != nil {
			events = append(events, proto.TranscriptDelta{Role: proto.RoleAgent, Text: c.OutputTranscription.Text})
		}
		if c.TurnComplete {
			events = append(events,
				proto.TranscriptDone{Role: proto.RoleUser},
				proto.TranscriptDone{Role: proto.RoleAgent},
				proto.TurnComplete{},
			)
		}
	}

	if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
		calls := make([]proto.ToolCallRequest, 0, len(tc.FunctionCalls))
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			calls = append(calls, proto.ToolCallRequest{ID: fc.ID, Name: fc.Name, Params: fc.Args})
		}
		events = append(events, proto.ToolCalls{Calls: calls})
	}

	if e := msg.Error; e != nil {
		code := e.Status
		if code == "" && e.Code != 0 {
			code = strconv.Itoa(e.Code)
		}
		events = append(events, proto.NewError(code, e.Status, e.Message))
	}

	return events, nil
}

// sampleRate extracts the rate parameter of a mime type like audio/pcm;rate=24000.
func sampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";")[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || k != "rate" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func functionDeclarations(decls []tools.Declaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(d.Params)),
		}
		for _, p := range d.Params {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
				Enum:        p.Enum,
			}
			schema.Required = append(schema.Required, p.Name)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		})
	}
	return out
}

var _ rtvoice.Dialect = &Dialect{}
