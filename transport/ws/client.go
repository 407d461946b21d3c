package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/gorilla/websocket"
)

type ClientConfig struct {
	Dial         DialConfig
	PingInterval time.Duration
	// BufferSize is the capacity of the inbound and outbound message queues.
	BufferSize int
}

func (c *ClientConfig) Defaults() {
	if c.PingInterval == 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.BufferSize == 0 {
		c.BufferSize = 64
	}

	c.Dial.Defaults()
}

type DialConfig struct {
	// URL of the streaming endpoint. Falls back to the session config endpoint.
	URL string
	// CredentialParam names the query parameter carrying the credential.
	CredentialParam string
	ConnectTimeout  time.Duration
	Headers         http.Header
}

func (d *DialConfig) Defaults() {
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = 10 * time.Second
	}
}

// endpoint returns the dial URL with the credential embedded and a copy safe
// for logging.
func (d *DialConfig) endpoint(p rtvoice.OpenParams) (*url.URL, string, error) {
	raw := d.URL
	param := d.CredentialParam
	if p.Config != nil {
		if raw == "" {
			raw = p.Config.Endpoint
		}
		if param == "" {
			param = p.Config.CredentialParam
		}
	}
	if raw == "" {
		return nil, "", errors.New("no endpoint configured")
	}
	if param == "" {
		param = "key"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse endpoint: %w", err)
	}
	safe := u.Redacted()
	if p.Credential != "" {
		q := u.Query()
		q.Set(param, p.Credential)
		u.RawQuery = q.Encode()
	}
	return u, safe, nil
}

func (d *DialConfig) doDial(ctx context.Context, u *url.URL) (*websocket.Conn, *http.Response, error) {
	d.Defaults()

	var header = http.Header{}
	for k, v := range d.Headers {
		for _, vv := range v {
			header.Add(k, vv)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.ConnectTimeout)
	defer cancel()
	return websocket.DefaultDialer.DialContext(dialCtx, u.String(), header)
}

// Transport opens sessions over a single websocket carrying JSON frames with
// inline base64 audio.
type Transport struct {
	config ClientConfig
}

func New(config ClientConfig) *Transport {
	config.Defaults()
	return &Transport{config: config}
}

func (t *Transport) Open(ctx context.Context, p rtvoice.OpenParams) (rtvoice.Connection, error) {
	u, safe, err := t.config.Dial.endpoint(p)
	if err != nil {
		return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, err)
	}

	base := p.Logger
	if base == nil {
		base = slog.Default()
	}
	logger := base.With(
		slog.String("transport", "websocket"),
		slog.String("endpoint", safe),
	)

	capture, err := rtvoice.OpenCapture(ctx, p)
	if err != nil {
		return nil, err
	}

	logger.Debug("Connecting to websocket endpoint")

	conn, resp, err := t.config.Dial.doDial(ctx, u)
	if err != nil {
		_ = capture.Close()
		if resp != nil {
			return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, fmt.Errorf("dial: unexpected status code %d: %w", resp.StatusCode, err))
		}
		return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, fmt.Errorf("dial: %w", err))
	}

	logger = logger.With(
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)
	logger.Debug("Websocket connection established")

	c := newConn(conn, capture, p, t.config, logger)
	go c.processConnection()

	return c, nil
}

var _ rtvoice.Transport = &Transport{}
