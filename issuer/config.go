package issuer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/babelforce/rtvoice-go/config"
)

const DefaultSessionsURL = "https://api.openai.com/v1/realtime/sessions"

type Config struct {
	Addr     string
	Provider config.Provider
	// APIKey is the long lived provider key. It never leaves the issuer for
	// OpenAI; Gemini clients receive it as is.
	APIKey string
	Model  string
	Voice  string
	// Voices restricts what clients may request. Empty allows any voice.
	Voices []string

	SessionsURL  string
	Timeout      time.Duration
	Client       *http.Client
	AllowOrigins []string
}

func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = ":8081"
	}
	if c.Provider == "" {
		c.Provider = config.ProviderOpenAI
	}
	if c.SessionsURL == "" {
		c.SessionsURL = DefaultSessionsURL
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}

	var preset config.Config
	if c.Provider == config.ProviderGemini {
		preset = config.Gemini()
	} else {
		preset = config.OpenAI()
	}
	if c.Model == "" {
		c.Model = preset.Model
	}
	if c.Voice == "" {
		c.Voice = preset.Voice
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case config.ProviderOpenAI, config.ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown provider: %q", c.Provider))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api key is required"))
	}
	return errors.Join(errs...)
}
