package providers

import (
	"testing"

	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/transport/webrtc"
	"github.com/babelforce/rtvoice-go/transport/ws"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	for _, tc := range []struct {
		name      string
		cfg       func() config.Config
		dialect   string
		transport any
		err       bool
	}{
		{
			name:      "openai",
			cfg:       config.OpenAI,
			dialect:   "openai",
			transport: &webrtc.Transport{},
		},
		{
			name:      "gemini",
			cfg:       config.Gemini,
			dialect:   "gemini",
			transport: &ws.Transport{},
		},
		{
			name: "gemini over webrtc",
			cfg: func() config.Config {
				c := config.Gemini()
				c.Transport = config.TransportPeer
				return c
			},
			err: true,
		},
		{
			name: "openai over websocket",
			cfg: func() config.Config {
				c := config.OpenAI()
				c.Transport = config.TransportSocket
				return c
			},
			err: true,
		},
		{
			name: "unknown",
			cfg: func() config.Config {
				return config.Config{Provider: "acme"}
			},
			err: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg()
			tr, d, err := For(&cfg)
			if tc.err {
				require.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tc.transport, tr)
			require.Equal(t, tc.dialect, d.Name())
		})
	}
}

func TestForNil(t *testing.T) {
	_, _, err := For(nil)
	require.ErrorIs(t, err, ErrUnsupported)
}
