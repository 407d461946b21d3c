package openai

import (
	"encoding/json"
	"testing"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/proto"
	"github.com/babelforce/rtvoice-go/tools"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	type tc struct {
		name   string
		frame  string
		expect []proto.ControlEvent
	}

	d := New()
	for _, tt := range []tc{
		{
			name:   "session created",
			frame:  `{"type":"session.created","session":{"id":"sess_1"}}`,
			expect: []proto.ControlEvent{proto.SetupAck{SessionID: "sess_1"}},
		},
		{
			name:   "audio delta",
			frame:  `{"type":"response.audio.delta","delta":"AAAA"}`,
			expect: []proto.ControlEvent{proto.AudioDelta{Payload: "AAAA"}},
		},
		{
			name:   "ga audio delta",
			frame:  `{"type":"response.output_audio.delta","delta":"AAAA"}`,
			expect: []proto.ControlEvent{proto.AudioDelta{Payload: "AAAA"}},
		},
		{
			name:   "agent transcript delta",
			frame:  `{"type":"response.audio_transcript.delta","delta":"Hel"}`,
			expect: []proto.ControlEvent{proto.TranscriptDelta{Role: proto.RoleAgent, Text: "Hel"}},
		},
		{
			name:   "agent transcript done",
			frame:  `{"type":"response.audio_transcript.done","transcript":"Hello"}`,
			expect: []proto.ControlEvent{proto.TranscriptDone{Role: proto.RoleAgent, Text: "Hello"}},
		},
		{
			name:   "user transcript",
			frame:  `{"type":"conversation.item.input_audio_transcription.completed","transcript":"Hi there"}`,
			expect: []proto.ControlEvent{proto.TranscriptDone{Role: proto.RoleUser, Text: "Hi there"}},
		},
		{
			name:   "speech started",
			frame:  `{"type":"input_audio_buffer.speech_started"}`,
			expect: []proto.ControlEvent{proto.SpeechStarted{}, proto.Interrupted{}},
		},
		{
			name:   "speech stopped",
			frame:  `{"type":"input_audio_buffer.speech_stopped"}`,
			expect: []proto.ControlEvent{proto.SpeechStopped{}},
		},
		{
			name:   "response done",
			frame:  `{"type":"response.done","response":{"id":"r1","status":"completed","output":[{"type":"message"}]}}`,
			expect: []proto.ControlEvent{proto.TurnComplete{}},
		},
		{
			name:  "response done with calls",
			frame: `{"type":"response.done","response":{"output":[{"type":"function_call","call_id":"c1","name":"navigate","arguments":"{\"section\":\"pricing\"}"},{"type":"function_call","call_id":"c2","name":"highlight_element","arguments":"{\"element_id\":\"hero\"}"}]}}`,
			expect: []proto.ControlEvent{proto.ToolCalls{Calls: []proto.ToolCallRequest{
				{ID: "c1", Name: "navigate", Params: map[string]any{"section": "pricing"}},
				{ID: "c2", Name: "highlight_element", Params: map[string]any{"element_id": "hero"}},
			}}},
		},
		{
			name:   "error",
			frame:  `{"type":"error","error":{"type":"invalid_request_error","code":"invalid_api_key","message":"bad key"}}`,
			expect: []proto.ControlEvent{proto.NewError("invalid_api_key", "invalid_request_error", "bad key")},
		},
		{
			name:  "ignored",
			frame: `{"type":"rate_limits.updated"}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			events, err := d.Parse([]byte(tt.frame))
			require.NoError(t, err)
			require.Equal(t, tt.expect, events)
		})
	}
}

func TestParseErrors(t *testing.T) {
	d := New()

	_, err := d.Parse([]byte(`{not json`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = d.Parse([]byte(`{"delta":"x"}`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	// a broken call is still answered
	events, err := d.Parse([]byte(`{"type":"response.done","response":{"output":[{"type":"function_call","call_id":"c1","name":"navigate","arguments":"{oops"}]}}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
	require.Equal(t, []proto.ControlEvent{proto.ToolCalls{Calls: []proto.ToolCallRequest{{ID: "c1", Name: "navigate"}}}}, events)
}

func TestErrorClassification(t *testing.T) {
	d := New()

	events, err := d.Parse([]byte(`{"type":"error","error":{"type":"server_error","message":"blip"}}`))
	require.NoError(t, err)
	require.False(t, events[0].(*proto.Error).Fatal)

	events, err = d.Parse([]byte(`{"type":"error","error":{"type":"insufficient_quota","message":"pay up"}}`))
	require.NoError(t, err)
	require.True(t, events[0].(*proto.Error).Fatal)
}

func TestConfigure(t *testing.T) {
	cfg := config.OpenAI()
	cfg.Defaults()
	cfg.Instructions = "You are a helpful guide."

	msgs := New().Configure(rtvoice.SessionParams{
		Config:   &cfg,
		Language: "de-DE",
		Voice:    "verse",
		Tools:    tools.Declarations(nil),
	})
	require.Len(t, msgs, 1)

	data, err := json.Marshal(msgs[0])
	require.NoError(t, err)

	var out struct {
		Type    string `json:"type"`
		Session struct {
			Instructions            string `json:"instructions"`
			Voice                   string `json:"voice"`
			InputAudioTranscription struct {
				Language string `json:"language"`
			} `json:"input_audio_transcription"`
			TurnDetection struct {
				Type              string  `json:"type"`
				Threshold         float64 `json:"threshold"`
				SilenceDurationMs int64   `json:"silence_duration_ms"`
			} `json:"turn_detection"`
			Tools []struct {
				Name       string         `json:"name"`
				Parameters map[string]any `json:"parameters"`
			} `json:"tools"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "session.update", out.Type)
	require.Equal(t, "verse", out.Session.Voice)
	require.Contains(t, out.Session.Instructions, "You are a helpful guide.")
	require.Contains(t, out.Session.Instructions, `"de-DE"`)
	require.Equal(t, "de", out.Session.InputAudioTranscription.Language)
	require.Equal(t, "server_vad", out.Session.TurnDetection.Type)
	require.Equal(t, 0.5, out.Session.TurnDetection.Threshold)
	require.EqualValues(t, 500, out.Session.TurnDetection.SilenceDurationMs)
	require.Len(t, out.Session.Tools, 3)
	require.Equal(t, "object", out.Session.Tools[0].Parameters["type"])
}

func TestToolResponses(t *testing.T) {
	msgs := New().ToolResponses([]proto.ToolCallResponse{
		{ID: "c1", Name: "navigate", Result: "navigated to /pricing"},
		{ID: "c2", Name: "nope", Result: "unknown tool", Failed: true},
	})
	require.Len(t, msgs, 3)

	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"type":"conversation.item.create","item":{"type":"function_call_output","call_id":"c1","output":"navigated to /pricing"}},
		{"type":"conversation.item.create","item":{"type":"function_call_output","call_id":"c2","output":"unknown tool"}},
		{"type":"response.create"}
	]`, string(data))

	require.Empty(t, New().ToolResponses(nil))
}

func TestEnvelopeAndUtterance(t *testing.T) {
	data, err := json.Marshal(New().AudioEnvelope("AAAA"))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"input_audio_buffer.append","audio":"AAAA"}`, string(data))

	msgs := New().Utterance("Welcome!")
	require.Len(t, msgs, 1)
	data, err = json.Marshal(msgs[0])
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"response.create"`)
	require.Contains(t, string(data), "Welcome!")
}
