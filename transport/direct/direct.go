// Package direct is an in-memory transport. The remote side of every opened
// connection is handed out as a Peer, which makes it suitable for tests and
// for hosts embedding a local model.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/proto"
)

// Transport opens in-memory connections.
type Transport struct {
	// OnOpen runs before the microphone is acquired. A non nil error fails the
	// open at the signaling stage.
	OnOpen func(ctx context.Context, p rtvoice.OpenParams) error

	bufferSize int
	peers      chan *Peer

	mu     sync.Mutex
	opened int
}

func New(bufferSize int) *Transport {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Transport{
		bufferSize: bufferSize,
		peers:      make(chan *Peer, 16),
	}
}

// Opened returns how many connections were opened.
func (t *Transport) Opened() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened
}

func (t *Transport) Open(ctx context.Context, p rtvoice.OpenParams) (rtvoice.Connection, error) {
	if t.OnOpen != nil {
		if err := t.OnOpen(ctx, p); err != nil {
			return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, err)
	}

	capture, err := rtvoice.OpenCapture(ctx, p)
	if err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		params:    p,
		capture:   capture,
		out:       make(chan []byte, t.bufferSize),
		frames:    make(chan proto.Frame, t.bufferSize),
		media:     make(chan audio.Chunk, t.bufferSize),
		closed:    make(chan struct{}),
		uplinkEnd: make(chan struct{}),
		logger:    logger.With(slog.String("component", "direct")),
	}

	t.mu.Lock()
	t.opened++
	t.mu.Unlock()

	select {
	case t.peers <- &Peer{conn: c, Params: p}:
	case <-ctx.Done():
		_ = c.Close(context.Background())
		return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, ctx.Err())
	}

	return c, nil
}

// Accept returns the remote side of the next opened connection.
func (t *Transport) Accept(ctx context.Context) (*Peer, error) {
	select {
	case p := <-t.peers:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Conn is the local side of an in-memory connection. Audio travels inline in
// control messages, as on a socket.
type Conn struct {
	params  rtvoice.OpenParams
	capture audio.Capture
	logger  *slog.Logger

	out    chan []byte
	frames chan proto.Frame
	media  chan audio.Chunk

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
	err       error

	uplinkOnce sync.Once
	uplinkCtx  context.CancelFunc
	uplinkEnd  chan struct{}
	uplinkRan  bool
}

func (c *Conn) SendAudio(ctx context.Context, chunk audio.Chunk) error {
	if c.params.Envelope == nil {
		return fmt.Errorf("no audio envelope configured")
	}
	return c.SendControl(ctx, c.params.Envelope(audio.EncodeChunk(chunk)))
}

func (c *Conn) SendControl(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal control: %w", err)
	}

	select {
	case <-c.closed:
		return rtvoice.ErrTransportClosed
	default:
	}

	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return rtvoice.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) StartUplink() {
	c.uplinkOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		select {
		case <-c.closed:
			return
		default:
		}

		ctx, cancel := context.WithCancel(context.Background())
		c.uplinkCtx = cancel
		c.uplinkRan = true

		go func() {
			defer close(c.uplinkEnd)
			if err := rtvoice.Uplink(ctx, c.capture, c.params, c.SendAudio); err != nil {
				c.logger.Warn("uplink stopped", slog.Any("err", err))
			}
		}()
	})
}

func (c *Conn) Frames() <-chan proto.Frame {
	return c.frames
}

func (c *Conn) Media() <-chan audio.Chunk {
	return c.media
}

func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) Close(ctx context.Context) error {
	c.shutdown(nil)

	c.mu.Lock()
	ran := c.uplinkRan
	c.mu.Unlock()
	if !ran {
		return nil
	}

	select {
	case <-c.uplinkEnd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		close(c.closed)
		if c.uplinkCtx != nil {
			c.uplinkCtx()
		}
		c.mu.Unlock()

		// stops a capture blocked in Read
		_ = c.capture.Close()
	})
}

var _ rtvoice.Connection = &Conn{}

// Peer is the remote end of a Conn.
type Peer struct {
	Params rtvoice.OpenParams
	conn   *Conn
}

// Recv returns the next control message sent by the local side.
func (p *Peer) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.conn.out:
		return data, nil
	case <-p.conn.closed:
		return nil, rtvoice.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecvTimeout is Recv bounded by d.
func (p *Peer) RecvTimeout(d time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.Recv(ctx)
}

// Send delivers a raw control frame to the local side.
func (p *Peer) Send(data []byte) error {
	select {
	case p.conn.frames <- proto.Frame{Data: data, ReceivedAt: time.Now()}:
		return nil
	case <-p.conn.closed:
		return rtvoice.ErrTransportClosed
	}
}

func (p *Peer) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Send(data)
}

// SendMedia delivers audio on the media path of the local side.
func (p *Peer) SendMedia(c audio.Chunk) error {
	select {
	case p.conn.media <- c:
		return nil
	case <-p.conn.closed:
		return rtvoice.ErrTransportClosed
	}
}

// Fail closes the connection with err, like a dropped network link.
func (p *Peer) Fail(err error) {
	p.conn.shutdown(err)
}

func (p *Peer) Closed() <-chan struct{} {
	return p.conn.closed
}
