// Package providers maps a session configuration onto the transport and
// dialect pair that talks to the configured speech-to-speech model.
package providers

import (
	"errors"
	"fmt"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/provider/gemini"
	"github.com/babelforce/rtvoice-go/provider/openai"
	"github.com/babelforce/rtvoice-go/transport/webrtc"
	"github.com/babelforce/rtvoice-go/transport/ws"
)

var ErrUnsupported = errors.New("unsupported provider")

// For returns the transport and dialect for cfg. cfg must have defaults
// applied.
func For(cfg *config.Config) (rtvoice.Transport, rtvoice.Dialect, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("%w: no config", ErrUnsupported)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.Transport != config.TransportPeer {
			return nil, nil, fmt.Errorf("%w: %s over %s", ErrUnsupported, cfg.Provider, cfg.Transport)
		}
		return webrtc.New(webrtc.ClientConfig{ConnectTimeout: cfg.ConnectTimeout}), openai.New(), nil

	case config.ProviderGemini:
		if cfg.Transport != config.TransportSocket {
			return nil, nil, fmt.Errorf("%w: %s over %s", ErrUnsupported, cfg.Provider, cfg.Transport)
		}
		t := ws.New(ws.ClientConfig{
			Dial: ws.DialConfig{ConnectTimeout: cfg.ConnectTimeout},
		})
		return t, gemini.New(cfg.InputSampleRate), nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.Provider)
	}
}

// Option resolves cfg into an engine option.
func Option(cfg *config.Config) (rtvoice.Option, error) {
	t, d, err := For(cfg)
	if err != nil {
		return nil, err
	}
	return rtvoice.WithProvider(t, d), nil
}
