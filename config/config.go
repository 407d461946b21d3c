// Package config holds the provider specific constants of a voice session.
// A Config is shared read-only by every component once an engine is built.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

type TransportKind string

const (
	TransportPeer   TransportKind = "webrtc"
	TransportSocket TransportKind = "websocket"
)

const (
	DefaultGreetingDelay     = 500 * time.Millisecond
	DefaultHighlightDuration = 3 * time.Second
	DefaultConnectTimeout    = 15 * time.Second
	DefaultWaveformBars      = 32
	DefaultWaveformRefresh   = time.Second / 30
	DefaultUplinkFrame       = 40 * time.Millisecond
)

// VAD configures server side voice activity detection.
type VAD struct {
	Threshold       float64       `yaml:"threshold"`
	PrefixPadding   time.Duration `yaml:"prefix_padding"`
	SilenceDuration time.Duration `yaml:"silence_duration"`
}

type Waveform struct {
	Bars            int           `yaml:"bars"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

type Config struct {
	Provider  Provider      `yaml:"provider"`
	Transport TransportKind `yaml:"transport"`

	// Endpoint is the signaling URL (peer) or the streaming socket URL (socket).
	Endpoint string `yaml:"endpoint"`
	// CredentialURL is the host endpoint issuing short lived credentials.
	CredentialURL string `yaml:"credential_url"`
	// CredentialParam is the query parameter carrying the credential on socket URLs.
	CredentialParam string `yaml:"credential_param"`

	Model        string   `yaml:"model"`
	Voice        string   `yaml:"voice"`
	Voices       []string `yaml:"voices"`
	Language     string   `yaml:"language"`
	Languages    []string `yaml:"languages"`
	Instructions string   `yaml:"instructions"`

	// OpeningLine is spoken by the agent right after setup when set.
	OpeningLine   string        `yaml:"opening_line"`
	GreetingDelay time.Duration `yaml:"greeting_delay"`

	InputSampleRate  int           `yaml:"input_sample_rate"`
	OutputSampleRate int           `yaml:"output_sample_rate"`
	UplinkFrame      time.Duration `yaml:"uplink_frame"`

	VAD VAD `yaml:"vad"`

	MaxDuration time.Duration `yaml:"max_duration"`
	MaxTurns    int           `yaml:"max_turns"`

	HighlightDuration time.Duration     `yaml:"highlight_duration"`
	Sections          map[string]string `yaml:"sections"`

	ICEServers     []ICEServer   `yaml:"ice_servers"`
	Waveform       Waveform      `yaml:"waveform"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Defaults fills unset fields with the provider presets.
func (c *Config) Defaults() {
	var preset Config
	switch c.Provider {
	case ProviderGemini:
		preset = Gemini()
	default:
		c.Provider = ProviderOpenAI
		preset = OpenAI()
	}

	if c.Transport == "" {
		c.Transport = preset.Transport
	}
	if c.Endpoint == "" {
		c.Endpoint = preset.Endpoint
	}
	if c.CredentialParam == "" {
		c.CredentialParam = preset.CredentialParam
	}
	if c.Model == "" {
		c.Model = preset.Model
	}
	if len(c.Voices) == 0 {
		c.Voices = preset.Voices
	}
	if c.Voice == "" {
		c.Voice = preset.Voice
	}
	if c.Language == "" {
		c.Language = preset.Language
	}
	if c.InputSampleRate == 0 {
		c.InputSampleRate = preset.InputSampleRate
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = preset.OutputSampleRate
	}
	if c.UplinkFrame == 0 {
		c.UplinkFrame = DefaultUplinkFrame
	}
	if c.VAD == (VAD{}) {
		c.VAD = preset.VAD
	}
	if c.GreetingDelay == 0 {
		c.GreetingDelay = DefaultGreetingDelay
	}
	if c.HighlightDuration == 0 {
		c.HighlightDuration = DefaultHighlightDuration
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Waveform.Bars == 0 {
		c.Waveform.Bars = DefaultWaveformBars
	}
	if c.Waveform.RefreshInterval == 0 {
		c.Waveform.RefreshInterval = DefaultWaveformRefresh
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown provider: %q", c.Provider))
	}
	switch c.Transport {
	case TransportPeer, TransportSocket:
	default:
		errs = append(errs, fmt.Errorf("unknown transport: %q", c.Transport))
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if len(c.Voices) > 0 && !slices.Contains(c.Voices, c.Voice) {
		errs = append(errs, fmt.Errorf("voice %q is not one of %v", c.Voice, c.Voices))
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		errs = append(errs, errors.New("sample rates must be positive"))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, errors.New("max duration must not be negative"))
	}
	if c.MaxTurns < 0 {
		errs = append(errs, errors.New("max turns must not be negative"))
	}
	if c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad threshold must be between 0 and 1, got %f", c.VAD.Threshold))
	}

	return errors.Join(errs...)
}

// SupportsLanguage reports whether code may be selected. An empty language
// list accepts any code.
func (c *Config) SupportsLanguage(code string) bool {
	if code == "" {
		return false
	}
	return len(c.Languages) == 0 || slices.Contains(c.Languages, code)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Voices = slices.Clone(c.Voices)
	out.Languages = slices.Clone(c.Languages)
	out.ICEServers = slices.Clone(c.ICEServers)
	if c.Sections != nil {
		out.Sections = make(map[string]string, len(c.Sections))
		for k, v := range c.Sections {
			out.Sections[k] = v
		}
	}
	return &out
}

// Load reads a YAML config file, applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	cfg.Defaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}
