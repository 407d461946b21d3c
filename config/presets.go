package config

import "time"

// OpenAI returns the preset for the OpenAI realtime API over WebRTC.
func OpenAI() Config {
	return Config{
		Provider:         ProviderOpenAI,
		Transport:        TransportPeer,
		Endpoint:         "https://api.openai.com/v1/realtime",
		Model:            "gpt-4o-realtime-preview-2024-12-17",
		Voice:            "alloy",
		Voices:           []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"},
		Language:         "en",
		InputSampleRate:  24_000,
		OutputSampleRate: 24_000,
		VAD: VAD{
			Threshold:       0.5,
			PrefixPadding:   300 * time.Millisecond,
			SilenceDuration: 500 * time.Millisecond,
		},
	}
}

// Gemini returns the preset for the Gemini Live API over a websocket.
func Gemini() Config {
	return Config{
		Provider:         ProviderGemini,
		Transport:        TransportSocket,
		Endpoint:         "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
		CredentialParam:  "key",
		Model:            "models/gemini-2.0-flash-live-001",
		Voice:            "Puck",
		Voices:           []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede", "Leda", "Orus", "Zephyr"},
		Language:         "en-US",
		InputSampleRate:  16_000,
		OutputSampleRate: 24_000,
		VAD: VAD{
			Threshold:       0.5,
			PrefixPadding:   300 * time.Millisecond,
			SilenceDuration: 800 * time.Millisecond,
		},
	}
}
