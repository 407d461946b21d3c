package gemini

import "google.golang.org/genai"

type realtimeInput struct {
	RealtimeInput realtimeAudio `json:"realtimeInput"`
}

type realtimeAudio struct {
	Audio blob `json:"audio"`
}

// blob keeps the audio as base64 text. genai.Blob would decode it into bytes.
type blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

type serverMessage struct {
	SetupComplete *struct{}                 `json:"setupComplete"`
	ServerContent *serverContent            `json:"serverContent"`
	ToolCall      *genai.LiveServerToolCall `json:"toolCall"`
	Error         *serverError              `json:"error"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn"`
	TurnComplete        bool           `json:"turnComplete"`
	Interrupted         bool           `json:"interrupted"`
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text"`
	InlineData *blob  `json:"inlineData"`
}

type transcription struct {
	Text string `json:"text"`
}

type serverError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
