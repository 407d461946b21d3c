package webrtc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/stretchr/testify/require"
)

func openParams(t *testing.T, endpoint string, src audio.Source) rtvoice.OpenParams {
	t.Helper()
	cfg := config.OpenAI()
	cfg.Endpoint = endpoint
	cfg.Defaults()
	return rtvoice.OpenParams{
		SessionID:  "test",
		Credential: "ek_test",
		Config:     &cfg,
		Source:     src,
		Observer:   &audio.Observer{},
	}
}

func TestExchangeSDP(t *testing.T) {
	type request struct {
		method, auth, contentType, model, body string
	}
	got := make(chan request, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- request{
			method:      r.Method,
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			model:       r.URL.Query().Get("model"),
			body:        string(body),
		}
		w.Header().Set("Content-Type", "application/sdp")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("v=0 answer"))
	}))
	defer srv.Close()

	answer, err := exchangeSDP(context.Background(), srv.Client(), srv.URL, "gpt-realtime", "ek_1", "v=0 offer")
	require.NoError(t, err)
	require.Equal(t, "v=0 answer", answer)

	req := <-got
	require.Equal(t, http.MethodPost, req.method)
	require.Equal(t, "Bearer ek_1", req.auth)
	require.Equal(t, "application/sdp", req.contentType)
	require.Equal(t, "gpt-realtime", req.model)
	require.Equal(t, "v=0 offer", req.body)
}

func TestExchangeSDPFailures(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: "bad key", errMsg: "unexpected status code 401: bad key"},
		{name: "server error", status: http.StatusBadGateway, errMsg: "unexpected status code 502"},
		{name: "empty answer", status: http.StatusOK, errMsg: "empty answer"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := exchangeSDP(context.Background(), srv.Client(), srv.URL, "", "ek", "offer")
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestOpenSignalingRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid ephemeral key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	capture := &countingCapture{Capture: audio.NewToneCapture(24_000, 0)}
	src := audio.SourceFunc(func(ctx context.Context) (audio.Capture, error) {
		return capture, nil
	})

	tr := New(ClientConfig{ConnectTimeout: 10 * time.Second})
	_, err := tr.Open(context.Background(), openParams(t, srv.URL, src))
	require.ErrorIs(t, err, rtvoice.ErrSignaling)
	require.ErrorIs(t, err, rtvoice.ErrConnect)
	require.Contains(t, err.Error(), "401")

	require.Equal(t, int32(1), capture.closes.Load(), "microphone must be released exactly once")
}

func TestOpenMicDenied(t *testing.T) {
	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer srv.Close()

	src := audio.SourceFunc(func(ctx context.Context) (audio.Capture, error) {
		return nil, audio.ErrPermissionDenied
	})

	_, err := New(ClientConfig{}).Open(context.Background(), openParams(t, srv.URL, src))
	require.ErrorIs(t, err, rtvoice.ErrMediaPermission)
	require.True(t, errors.Is(err, audio.ErrPermissionDenied))
	require.False(t, called.Load(), "signaling must not start without a microphone")
}

func TestOpenNoEndpoint(t *testing.T) {
	p := openParams(t, "", audio.ToneSource(24_000, 0))
	p.Config.Endpoint = ""

	_, err := New(ClientConfig{}).Open(context.Background(), p)
	require.ErrorIs(t, err, rtvoice.ErrSignaling)
}

// countingCapture counts Close calls and, like a device handle, fails on a
// second one.
type countingCapture struct {
	audio.Capture
	closes atomic.Int32
}

func (c *countingCapture) Close() error {
	if c.closes.Add(1) > 1 {
		return errors.New("capture closed twice")
	}
	return c.Capture.Close()
}
