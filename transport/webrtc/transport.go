// Package webrtc carries a voice session over a peer connection: microphone
// audio on a PCMU track, agent audio on the remote track and control events
// on a data channel.
package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/proto"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	pionwebrtc "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type Transport struct {
	config ClientConfig
}

func New(config ClientConfig) *Transport {
	config.Defaults()
	return &Transport{config: config}
}

func newAPI() (*pionwebrtc.API, error) {
	mediaEngine := &pionwebrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(pionwebrtc.RTPCodecParameters{
		RTPCodecCapability: pionwebrtc.RTPCodecCapability{
			MimeType:  pionwebrtc.MimeTypePCMU,
			ClockRate: pcmuClockRate,
			Channels:  1,
		},
		PayloadType: pcmuPayloadType,
	}, pionwebrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register PCMU codec: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := pionwebrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	return pionwebrtc.NewAPI(
		pionwebrtc.WithMediaEngine(mediaEngine),
		pionwebrtc.WithInterceptorRegistry(registry),
	), nil
}

func (t *Transport) Open(ctx context.Context, p rtvoice.OpenParams) (rtvoice.Connection, error) {
	endpoint := t.config.URL
	if endpoint == "" && p.Config != nil {
		endpoint = p.Config.Endpoint
	}
	if endpoint == "" {
		return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, errors.New("no endpoint configured"))
	}

	base := p.Logger
	if base == nil {
		base = slog.Default()
	}
	logger := base.With(slog.String("transport", "webrtc"))

	capture, err := rtvoice.OpenCapture(ctx, p)
	if err != nil {
		return nil, err
	}

	c, err := t.connect(ctx, endpoint, capture, p, logger)
	if err != nil {
		return nil, rtvoice.NewConnectError(rtvoice.StageSignaling, err)
	}
	return c, nil
}

// connect owns capture: on failure it is released exactly once, either here
// or by the connection that took it over.
func (t *Transport) connect(ctx context.Context, endpoint string, capture audio.Capture, p rtvoice.OpenParams, logger *slog.Logger) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.ConnectTimeout)
	defer cancel()

	api, err := newAPI()
	if err != nil {
		_ = capture.Close()
		return nil, err
	}

	var pcConfig pionwebrtc.Configuration
	if p.Config != nil {
		for _, srv := range p.Config.ICEServers {
			pcConfig.ICEServers = append(pcConfig.ICEServers, pionwebrtc.ICEServer{
				URLs:       srv.URLs,
				Username:   srv.Username,
				Credential: srv.Credential,
			})
		}
	}

	pc, err := api.NewPeerConnection(pcConfig)
	if err != nil {
		_ = capture.Close()
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	c := newConn(pc, capture, p, t.config, logger)
	ok := false
	defer func() {
		if !ok {
			_ = c.Close(context.Background())
		}
	}()

	track, err := pionwebrtc.NewTrackLocalStaticSample(
		pionwebrtc.RTPCodecCapability{
			MimeType:  pionwebrtc.MimeTypePCMU,
			ClockRate: pcmuClockRate,
			Channels:  1,
		},
		"audio",
		"rtvoice-"+p.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create local audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	c.track = track

	dc, err := pc.CreateDataChannel(EventsChannel, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	c.attach(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	gathered := pionwebrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, fmt.Errorf("ice gathering: %w", ctx.Err())
	}

	model := ""
	if p.Config != nil {
		model = p.Config.Model
	}
	answer, err := exchangeSDP(ctx, t.config.HTTPClient, endpoint, model, p.Credential, pc.LocalDescription().SDP)
	if err != nil {
		return nil, err
	}

	if err := pc.SetRemoteDescription(pionwebrtc.SessionDescription{
		Type: pionwebrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	select {
	case <-c.dcOpen:
	case <-c.done:
		return nil, fmt.Errorf("peer connection closed during setup: %w", c.Err())
	case <-ctx.Done():
		return nil, fmt.Errorf("data channel open: %w", ctx.Err())
	}

	logger.Debug("peer connection established")
	ok = true
	c.StartUplink()
	return c, nil
}

// Conn is an open peer connection.
type Conn struct {
	pc      *pionwebrtc.PeerConnection
	track   *pionwebrtc.TrackLocalStaticSample
	dc      *pionwebrtc.DataChannel
	capture audio.Capture
	params  rtvoice.OpenParams
	logger  *slog.Logger

	framer *audio.Framer
	frames chan proto.Frame
	media  chan audio.Chunk

	dcOpen    chan struct{}
	openOnce  sync.Once
	closeOnce sync.Once
	doneOnce  sync.Once
	closing   chan struct{}
	done      chan struct{}

	mu     sync.Mutex
	err    error
	uplink context.CancelFunc
	wg     sync.WaitGroup
}

func newConn(pc *pionwebrtc.PeerConnection, capture audio.Capture, p rtvoice.OpenParams, config ClientConfig, logger *slog.Logger) *Conn {
	frameSize := int(pcmuClockRate * frameDuration / time.Second)
	c := &Conn{
		pc:      pc,
		capture: capture,
		params:  p,
		logger:  logger,
		framer:  audio.NewFramer(frameSize, frameSize*50),
		frames:  make(chan proto.Frame, config.BufferSize),
		media:   make(chan audio.Chunk, config.BufferSize),
		dcOpen:  make(chan struct{}),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(state pionwebrtc.PeerConnectionState) {
		logger.Info("WebRTC connection state changed", slog.Any("state", state))
		switch state {
		case pionwebrtc.PeerConnectionStateFailed, pionwebrtc.PeerConnectionStateDisconnected:
			c.fail(fmt.Errorf("peer connection %s", state))
		case pionwebrtc.PeerConnectionStateClosed:
			c.fail(nil)
		}
	})

	pc.OnTrack(func(track *pionwebrtc.TrackRemote, _ *pionwebrtc.RTPReceiver) {
		if track.Kind() != pionwebrtc.RTPCodecTypeAudio {
			return
		}
		logger.Info("Remote audio track received", slog.String("codec", track.Codec().MimeType))
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-c.closing:
			return
		default:
		}
		c.wg.Add(1)
		go c.readRemoteAudio(track)
	})

	return c
}

func (c *Conn) attach(dc *pionwebrtc.DataChannel) {
	c.dc = dc
	dc.OnOpen(func() {
		c.openOnce.Do(func() { close(c.dcOpen) })
	})
	dc.OnClose(func() {
		c.fail(errors.New("data channel closed"))
	})
	dc.OnMessage(func(msg pionwebrtc.DataChannelMessage) {
		select {
		case c.frames <- proto.Frame{Data: msg.Data, ReceivedAt: time.Now()}:
		case <-c.closing:
		}
	})
}

// readRemoteAudio decodes PCMU packets of the remote track into chunks.
func (c *Conn) readRemoteAudio(track *pionwebrtc.TrackRemote) {
	defer c.wg.Done()

	if track.Codec().MimeType != pionwebrtc.MimeTypePCMU {
		c.logger.Error("Unsupported codec, only PCMU is supported", slog.String("codec", track.Codec().MimeType))
		return
	}

	rate := pcmuClockRate
	if c.params.Config != nil && c.params.Config.OutputSampleRate > 0 {
		rate = c.params.Config.OutputSampleRate
	}

	buf := make([]byte, rtpBufferSize)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("remote track read stopped", slog.Any("err", err))
			}
			return
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			c.logger.Debug("Failed to unmarshal RTP packet", slog.Any("err", err))
			continue
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		samples := audio.DecodePCM16(audio.DecodeMuLaw(pkt.Payload))
		chunk := audio.ResampleChunk(audio.NewChunk(samples, pcmuClockRate), rate)

		select {
		case c.media <- chunk:
		case <-c.closing:
			return
		}
	}
}

// SendAudio frames the chunk into 20ms PCMU samples on the local track.
func (c *Conn) SendAudio(ctx context.Context, chunk audio.Chunk) error {
	if c.track == nil {
		return errors.New("no local track")
	}
	select {
	case <-c.done:
		return rtvoice.ErrTransportClosed
	default:
	}

	c.framer.Push(audio.ResampleChunk(chunk, pcmuClockRate).Samples)
	for {
		frame, ok := c.framer.Next()
		if !ok {
			return nil
		}
		if err := c.track.WriteSample(media.Sample{
			Data:     audio.EncodeMuLaw(audio.EncodePCM16(frame)),
			Duration: frameDuration,
		}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *Conn) SendControl(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal control: %w", err)
	}
	select {
	case <-c.done:
		return rtvoice.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := c.dc.SendText(string(data)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// StartUplink pumps the microphone into the local track. The transport starts
// it as soon as the peer connection is up.
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
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := rtvoice.Uplink(ctx, c.capture, c.params, c.SendAudio); err != nil {
			c.logger.Warn("uplink stopped", slog.Any("err", err))
		}
	}()
}

func (c *Conn) Frames() <-chan proto.Frame {
	return c.frames
}

func (c *Conn) Media() <-chan audio.Chunk {
	return c.media
}

func (c *Conn) Closed() <-chan struct{} {
	return c.done
}

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// fail marks the connection as closed by the remote side or the network.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	select {
	case <-c.closing:
		c.mu.Unlock()
		return
	default:
	}
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Conn) Close(ctx context.Context) error {
	var closeErr error
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
		if c.dc != nil {
			_ = c.dc.Close()
		}
		if err := c.pc.Close(); err != nil {
			closeErr = fmt.Errorf("close peer connection: %w", err)
		}
		c.doneOnce.Do(func() { close(c.done) })
	})

	stopped := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return closeErr
	case <-ctx.Done():
		return fmt.Errorf("close failed: %w", ctx.Err())
	}
}

var (
	_ rtvoice.Transport  = &Transport{}
	_ rtvoice.Connection = &Conn{}
)
