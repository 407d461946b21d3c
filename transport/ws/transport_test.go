package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type envelope struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func openParams(t *testing.T, src audio.Source) rtvoice.OpenParams {
	t.Helper()
	cfg := config.Gemini()
	cfg.Defaults()
	cfg.UplinkFrame = 20 * time.Millisecond
	return rtvoice.OpenParams{
		SessionID:  "test",
		Credential: "secret",
		Config:     &cfg,
		Source:     src,
		Envelope: func(payload string) any {
			return envelope{Type: "audio", Audio: payload}
		},
		Observer: &audio.Observer{},
	}
}

// fakeEndpoint upgrades one connection and hands it to the test.
func fakeEndpoint(t *testing.T) (*httptest.Server, <-chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpenSendReceive(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, conns := fakeEndpoint(t)
	defer srv.Close()

	tr := New(ClientConfig{Dial: DialConfig{URL: wsURL(srv)}})
	c, err := tr.Open(context.Background(), openParams(t, audio.ToneSource(16_000, 440)))
	require.NoError(t, err)

	remote := <-conns
	defer remote.Close()

	// binary frames carry JSON as well
	require.NoError(t, remote.WriteMessage(websocket.BinaryMessage, []byte(`{"setupComplete":{}}`)))
	require.NoError(t, remote.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{}}`)))

	for _, expect := range []string{`{"setupComplete":{}}`, `{"serverContent":{}}`} {
		select {
		case f := <-c.Frames():
			require.JSONEq(t, expect, string(f.Data))
		case <-time.After(time.Second):
			t.Fatal("no frame received")
		}
	}

	require.NoError(t, c.SendControl(context.Background(), map[string]string{"hello": "world"}))
	_, data, err := remote.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"hello":"world"}`, string(data))

	c.StartUplink()
	c.StartUplink()

	_, data, err = remote.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "audio", env.Type)
	chunk, err := audio.DecodeChunk(env.Audio, 16_000)
	require.NoError(t, err)
	require.Equal(t, 320, chunk.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Err())
	require.ErrorIs(t, c.SendControl(ctx, "late"), rtvoice.ErrTransportClosed)

	select {
	case <-c.Closed():
	default:
		t.Fatal("connection not closed")
	}
}

func TestRemoteDrop(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, conns := fakeEndpoint(t)
	defer srv.Close()

	c, err := New(ClientConfig{Dial: DialConfig{URL: wsURL(srv)}}).Open(context.Background(), openParams(t, audio.ToneSource(16_000, 0)))
	require.NoError(t, err)

	remote := <-conns
	require.NoError(t, remote.UnderlyingConn().Close())

	select {
	case <-c.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("drop not detected")
	}
	require.Error(t, c.Err())
	require.NoError(t, c.Close(context.Background()))
}

func TestOpenRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, _ := fakeEndpoint(t)
	defer srv.Close()

	released := make(chan struct{})
	src := audio.SourceFunc(func(ctx context.Context) (audio.Capture, error) {
		return &closeSignal{Capture: audio.NewToneCapture(16_000, 0), closed: released}, nil
	})

	p := openParams(t, src)
	p.Credential = "wrong"

	_, err := New(ClientConfig{Dial: DialConfig{URL: wsURL(srv)}}).Open(context.Background(), p)
	require.ErrorIs(t, err, rtvoice.ErrSignaling)
	require.ErrorIs(t, err, rtvoice.ErrConnect)

	select {
	case <-released:
	default:
		t.Fatal("microphone not released after failed dial")
	}
}

func TestOpenMicDenied(t *testing.T) {
	srv, _ := fakeEndpoint(t)
	defer srv.Close()

	src := audio.SourceFunc(func(ctx context.Context) (audio.Capture, error) {
		return nil, audio.ErrPermissionDenied
	})

	_, err := New(ClientConfig{Dial: DialConfig{URL: wsURL(srv)}}).Open(context.Background(), openParams(t, src))
	require.ErrorIs(t, err, rtvoice.ErrMediaPermission)
	require.True(t, errors.Is(err, audio.ErrPermissionDenied))
}

func TestEndpointFromConfig(t *testing.T) {
	p := openParams(t, nil)
	p.Config.Endpoint = "wss://example.com/live?alt=json"
	p.Config.CredentialParam = "access_token"

	d := DialConfig{}
	u, safe, err := d.endpoint(p)
	require.NoError(t, err)
	require.Equal(t, "secret", u.Query().Get("access_token"))
	require.Equal(t, "json", u.Query().Get("alt"))
	require.NotContains(t, safe, "secret")
}

type closeSignal struct {
	audio.Capture
	closed chan struct{}
}

func (c *closeSignal) Close() error {
	close(c.closed)
	return c.Capture.Close()
}
