package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/proto"
	"github.com/gorilla/websocket"
)

// Conn is an open websocket session.
type Conn struct {
	conn    *websocket.Conn
	capture audio.Capture
	params  rtvoice.OpenParams
	config  ClientConfig
	logger  *slog.Logger

	msgOut chan outFrame
	frames chan proto.Frame

	closeOnce sync.Once
	closing   chan struct{} // closing is closed when Close was requested
	done      chan struct{} // done is closed when reading from the socket stopped
	finished  chan struct{} // finished is closed once the socket is released

	mu     sync.Mutex
	err    error
	uplink context.CancelFunc
	pumps  sync.WaitGroup
}

func newConn(
	conn *websocket.Conn,
	capture audio.Capture,
	params rtvoice.OpenParams,
	config ClientConfig,
	logger *slog.Logger,
) *Conn {
	conn.SetPingHandler(func(message string) error {
		logger.Debug("received ping")
		err := conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(1*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(string) error {
		logger.Debug("received pong")
		return nil
	})

	return &Conn{
		conn:     conn,
		capture:  capture,
		params:   params,
		config:   config,
		logger:   logger,
		msgOut:   make(chan outFrame, config.BufferSize),
		frames:   make(chan proto.Frame, config.BufferSize),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (c *Conn) SendAudio(ctx context.Context, chunk audio.Chunk) error {
	if c.params.Envelope == nil {
		return errors.New("no audio envelope configured")
	}
	return c.SendControl(ctx, c.params.Envelope(audio.EncodeChunk(chunk)))
}

func (c *Conn) SendControl(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal control: %w", err)
	}
	return c.write(ctx, textFrame(data))
}

func (c *Conn) write(ctx context.Context, msg outFrame) error {
	select {
	case <-c.closing:
		return rtvoice.ErrTransportClosed
	case <-c.done:
		return rtvoice.ErrTransportClosed
	default:
	}

	select {
	case c.msgOut <- msg:
		return nil
	case <-c.closing:
		return rtvoice.ErrTransportClosed
	case <-c.done:
		return rtvoice.ErrTransportClosed
	case <-ctx.Done():
		return fmt.Errorf("write failed: %w", ctx.Err())
	}
}

// StartUplink streams the microphone as inline audio messages.
func (c *Conn) StartUplink() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uplink != nil {
		return
	}
	select {
	case <-c.closing:
		return
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.uplink = cancel
	c.pumps.Add(1)

	go func() {
		defer c.pumps.Done()
		if err := rtvoice.Uplink(ctx, c.capture, c.params, c.SendAudio); err != nil {
			c.logger.Warn("uplink stopped", slog.Any("err", err))
		}
	}()
}

func (c *Conn) Frames() <-chan proto.Frame {
	return c.frames
}

// Media is nil; audio arrives inside control messages.
func (c *Conn) Media() <-chan audio.Chunk {
	return nil
}

func (c *Conn) Closed() <-chan struct{} {
	return c.done
}

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closing)
		if c.uplink != nil {
			c.uplink()
		}
		c.mu.Unlock()

		if err := c.capture.Close(); err != nil {
			c.logger.Warn("failed to release microphone", slog.Any("err", err))
		}
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("close failed: %w", ctx.Err())
	case <-c.finished:
	}

	pumped := make(chan struct{})
	go func() {
		c.pumps.Wait()
		close(pumped)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("close failed: %w", ctx.Err())
	case <-pumped:
		return nil
	}
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closing:
		return
	default:
	}
	if c.err == nil {
		c.err = err
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		mt, data, err := c.conn.ReadMessage()

		// on error: return
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("connection was closed by other peer", slog.Any("err", err))
			} else {
				c.fail(fmt.Errorf("read: %w", err))
				select {
				case <-c.closing:
				default:
					c.logger.Error("read failed", slog.Any("err", err))
				}
			}
			return
		}

		if !carriesEvents(mt) {
			continue
		}

		select {
		case c.frames <- proto.Frame{Data: data, ReceivedAt: time.Now()}:
		case <-c.closing:
			return
		}
	}
}

// processConnection owns all writes to the socket.
func (c *Conn) processConnection() {
	defer close(c.finished)
	defer func() {
		// close connection
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("connection close failed", slog.Any("err", err))
		}
		<-c.done
		c.logger.Debug("transport processing done")
	}()

	go c.readLoop()

	pingTicker := time.NewTicker(c.config.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-c.closing:
			c.sendClose()
			return

		case <-pingTicker.C:
			if err := (outFrame{kind: websocket.PingMessage}).writeTo(c.conn); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				c.logger.Error("write ping failed", slog.Any("err", err))
				return
			}

		case f := <-c.msgOut:
			if err := f.writeTo(c.conn); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				c.logger.Error("write failed", slog.Int("kind", f.kind), slog.Any("err", err))
				return
			}
		}
	}
}

// sendClose performs the closing handshake and waits briefly for the peer.
func (c *Conn) sendClose() {
	if err := closeFrame(websocket.CloseNormalClosure, "Closed").writeTo(c.conn); err != nil {
		c.logger.Debug("write close failed", slog.Any("err", err))
		return
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
}

var _ rtvoice.Connection = &Conn{}
