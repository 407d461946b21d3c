package direct

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type envelope struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func openParams(src audio.Source) rtvoice.OpenParams {
	cfg := config.OpenAI()
	cfg.Defaults()
	cfg.UplinkFrame = 20 * time.Millisecond
	return rtvoice.OpenParams{
		SessionID: "test",
		Config:    &cfg,
		Source:    src,
		Envelope: func(payload string) any {
			return envelope{Type: "audio", Audio: payload}
		},
	}
}

func TestRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := New(4)
	c, err := tr.Open(context.Background(), openParams(audio.ToneSource(24_000, 440)))
	require.NoError(t, err)
	require.Equal(t, 1, tr.Opened())

	peer, err := tr.Accept(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test", peer.Params.SessionID)

	require.NoError(t, c.SendControl(context.Background(), map[string]string{"type": "hello"}))
	data, err := peer.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"hello"}`, string(data))

	require.NoError(t, peer.SendJSON(map[string]string{"type": "ack"}))
	select {
	case f := <-c.Frames():
		require.JSONEq(t, `{"type":"ack"}`, string(f.Data))
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}

	require.NoError(t, peer.SendMedia(audio.NewChunk([]float32{0.5}, 24_000)))
	select {
	case m := <-c.Media():
		require.Equal(t, 1, m.Len())
	case <-time.After(time.Second):
		t.Fatal("no media received")
	}

	c.StartUplink()
	c.StartUplink()
	data, err = peer.RecvTimeout(time.Second)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "audio", env.Type)
	chunk, err := audio.DecodeChunk(env.Audio, 24_000)
	require.NoError(t, err)
	require.Equal(t, 480, chunk.Len())

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Err())

	select {
	case <-peer.Closed():
	default:
		t.Fatal("peer not closed")
	}
	require.ErrorIs(t, c.SendControl(context.Background(), "late"), rtvoice.ErrTransportClosed)
}

func TestPeerFail(t *testing.T) {
	tr := New(0)
	c, err := tr.Open(context.Background(), openParams(audio.ToneSource(24_000, 0)))
	require.NoError(t, err)
	peer, err := tr.Accept(context.Background())
	require.NoError(t, err)

	cause := errors.New("link down")
	peer.Fail(cause)

	select {
	case <-c.Closed():
	case <-time.After(time.Second):
		t.Fatal("connection not closed")
	}
	require.ErrorIs(t, c.Err(), cause)
	require.NoError(t, c.Close(context.Background()))
}

func TestOpenHookRejects(t *testing.T) {
	tr := New(0)
	tr.OnOpen = func(ctx context.Context, p rtvoice.OpenParams) error {
		return errors.New("denied")
	}

	_, err := tr.Open(context.Background(), openParams(audio.ToneSource(24_000, 0)))
	require.ErrorIs(t, err, rtvoice.ErrSignaling)
	require.Zero(t, tr.Opened())
}

func TestOpenWithoutMicrophone(t *testing.T) {
	_, err := New(0).Open(context.Background(), openParams(nil))
	require.ErrorIs(t, err, rtvoice.ErrMediaPermission)
}
