package webrtc

import (
	"net/http"
	"time"
)

const (
	// EventsChannel is the data channel label the realtime endpoint listens on.
	EventsChannel = "oai-events"

	pcmuClockRate   = 8_000
	pcmuPayloadType = 0
	frameDuration   = 20 * time.Millisecond
	rtpBufferSize   = 1500
)

type ClientConfig struct {
	// URL of the signaling endpoint. Falls back to the session config endpoint.
	URL            string
	ConnectTimeout time.Duration
	HTTPClient     *http.Client
	// BufferSize is the capacity of the inbound frame and media queues.
	BufferSize int
}

func (c *ClientConfig) Defaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.BufferSize == 0 {
		c.BufferSize = 128
	}
}
