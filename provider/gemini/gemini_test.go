package gemini

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

	d := New(16_000)
	for _, tt := range []tc{
		{
			name:   "setup complete",
			frame:  `{"setupComplete":{}}`,
			expect: []proto.ControlEvent{proto.SetupAck{}},
		},
		{
			name:  "model audio",
			frame: `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAAA"}},{"text":"thinking"}]}}}`,
			expect: []proto.ControlEvent{
				proto.AudioDelta{Payload: "AAAA", SampleRate: 24_000},
			},
		},
		{
			name:  "transcriptions",
			frame: `{"serverContent":{"inputTranscription":{"text":"hi"},"outputTranscription":{"text":"hello"}}}`,
			expect: []proto.ControlEvent{
				proto.TranscriptDelta{Role: proto.RoleUser, Text: "hi"},
				proto.TranscriptDelta{Role: proto.RoleAgent, Text: "hello"},
			},
		},
		{
			name:  "turn complete",
			frame: `{"serverContent":{"turnComplete":true}}`,
			expect: []proto.ControlEvent{
				proto.TranscriptDone{Role: proto.RoleUser},
				proto.TranscriptDone{Role: proto.RoleAgent},
				proto.TurnComplete{},
			},
		},
		{
			name:   "interrupted",
			frame:  `{"serverContent":{"interrupted":true}}`,
			expect: []proto.ControlEvent{proto.Interrupted{}},
		},
		{
			name:  "tool call",
			frame: `{"toolCall":{"functionCalls":[{"id":"f1","name":"scroll_to_element","args":{"element_id":"faq"}},{"id":"f2","name":"navigate","args":{"section":"pricing"}}]}}`,
			expect: []proto.ControlEvent{proto.ToolCalls{Calls: []proto.ToolCallRequest{
				{ID: "f1", Name: "scroll_to_element", Params: map[string]any{"element_id": "faq"}},
				{ID: "f2", Name: "navigate", Params: map[string]any{"section": "pricing"}},
			}}},
		},
		{
			name:   "error",
			frame:  `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
			expect: []proto.ControlEvent{proto.NewError("RESOURCE_EXHAUSTED", "RESOURCE_EXHAUSTED", "quota")},
		},
		{
			name:  "usage only",
			frame: `{"usageMetadata":{"totalTokenCount":12}}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			events, err := d.Parse([]byte(tt.frame))
			require.NoError(t, err)
			require.Equal(t, tt.expect, events)
		})
	}

	_, err := d.Parse([]byte(`[1,2`))
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestErrorIsFatal(t *testing.T) {
	events, err := New(0).Parse([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	require.NoError(t, err)
	require.True(t, events[0].(*proto.Error).Fatal)
}

func TestOpening(t *testing.T) {
	cfg := config.Gemini()
	cfg.Defaults()
	cfg.Instructions = "Be brief."

	msgs := New(16_000).Opening(rtvoice.SessionParams{
		Config:   &cfg,
		Language: "nl-NL",
		Voice:    "Kore",
		Tools:    tools.Declarations(map[string]string{"pricing": "/pricing"}),
	})
	require.Len(t, msgs, 1)
	require.Empty(t, New(16_000).Configure(rtvoice.SessionParams{Config: &cfg}))

	data, err := json.Marshal(msgs[0])
	require.NoError(t, err)

	var out struct {
		Setup struct {
			Model            string `json:"model"`
			GenerationConfig struct {
				ResponseModalities []string `json:"responseModalities"`
				SpeechConfig       struct {
					LanguageCode string `json:"languageCode"`
					VoiceConfig  struct {
						PrebuiltVoiceConfig struct {
							VoiceName string `json:"voiceName"`
						} `json:"prebuiltVoiceConfig"`
					} `json:"voiceConfig"`
				} `json:"speechConfig"`
			} `json:"generationConfig"`
			Tools []struct {
				FunctionDeclarations []struct {
					Name string `json:"name"`
				} `json:"functionDeclarations"`
			} `json:"tools"`
		} `json:"setup"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, cfg.Model, out.Setup.Model)
	require.Equal(t, []string{"AUDIO"}, out.Setup.GenerationConfig.ResponseModalities)
	require.Equal(t, "nl-NL", out.Setup.GenerationConfig.SpeechConfig.LanguageCode)
	require.Equal(t, "Kore", out.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	require.Len(t, out.Setup.Tools, 1)
	require.Len(t, out.Setup.Tools[0].FunctionDeclarations, 3)
}

func TestToolResponses(t *testing.T) {
	msgs := New(0).ToolResponses([]proto.ToolCallResponse{
		{ID: "f1", Name: "navigate", Result: "navigated to /pricing"},
		{ID: "f2", Name: "nope", Result: "unknown tool", Failed: true},
	})
	require.Len(t, msgs, 1)

	data, err := json.Marshal(msgs[0])
	require.NoError(t, err)

	var out struct {
		ToolResponse struct {
			FunctionResponses []struct {
				ID       string         `json:"id"`
				Name     string         `json:"name"`
				Response map[string]any `json:"response"`
			} `json:"functionResponses"`
		} `json:"toolResponse"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.ToolResponse.FunctionResponses, 2)
	require.Equal(t, "f1", out.ToolResponse.FunctionResponses[0].ID)
	require.Equal(t, "navigated to /pricing", out.ToolResponse.FunctionResponses[0].Response["result"])
	require.Equal(t, "unknown tool", out.ToolResponse.FunctionResponses[1].Response["error"])
}

func TestAudioEnvelope(t *testing.T) {
	data, err := json.Marshal(New(16_000).AudioEnvelope("AAAA"))
	require.NoError(t, err)
	require.JSONEq(t, `{"realtimeInput":{"audio":{"data":"AAAA","mimeType":"audio/pcm;rate=16000"}}}`, string(data))
}
