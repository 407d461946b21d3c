package rtvoice

import (
	"io"
	"log/slog"
	"time"

	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/credentials"
	"github.com/babelforce/rtvoice-go/playback"
	"github.com/babelforce/rtvoice-go/tools"
)

// Callbacks notify the host about engine activity. They are invoked outside of
// engine locks but may run on engine goroutines, so they must not block.
// Connect and ChangeLanguage must not be called from a callback.
type Callbacks struct {
	OnConversationStart func(sessionID string)
	OnConversationEnd   func(reason EndReason)
	OnError             func(err error)
	OnMessagesUpdate    func(messages []TranscriptMessage)
	OnWaveform          func(sample playback.WaveformSample)
	OnStateChange       func(status Status)
}

type engineOptions struct {
	logger      *slog.Logger
	callbacks   Callbacks
	credentials credentials.Source
	microphone  audio.Source
	sink        playback.Sink
	toolHost    tools.Host
	transport   Transport
	dialect     Dialect
	debug       bool
	statsEvery  time.Duration
}

type Option func(opts *engineOptions)

func withDefaults() Option {
	return withOptions(
		WithLogger(slog.Default()),
		WithSink(playback.NewWriterSink(io.Discard)),
		WithToolHost(nopHost{}),
	)
}

func withOptions(os ...Option) Option {
	return func(opts *engineOptions) {
		for _, o := range os {
			o(opts)
		}
	}
}

func (o *engineOptions) fillCallbacks() {
	cb := &o.callbacks
	if cb.OnConversationStart == nil {
		cb.OnConversationStart = func(string) {}
	}
	if cb.OnConversationEnd == nil {
		cb.OnConversationEnd = func(EndReason) {}
	}
	if cb.OnError == nil {
		cb.OnError = func(error) {}
	}
	if cb.OnMessagesUpdate == nil {
		cb.OnMessagesUpdate = func([]TranscriptMessage) {}
	}
	if cb.OnWaveform == nil {
		cb.OnWaveform = func(playback.WaveformSample) {}
	}
	if cb.OnStateChange == nil {
		cb.OnStateChange = func(Status) {}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *engineOptions) {
		opts.logger = logger
	}
}

func WithCallbacks(cb Callbacks) Option {
	return func(opts *engineOptions) {
		opts.callbacks = cb
	}
}

func WithCredentialSource(src credentials.Source) Option {
	return func(opts *engineOptions) {
		opts.credentials = src
	}
}

func WithMicrophone(src audio.Source) Option {
	return func(opts *engineOptions) {
		opts.microphone = src
	}
}

// WithSink sets where received agent audio is played.
func WithSink(sink playback.Sink) Option {
	return func(opts *engineOptions) {
		opts.sink = sink
	}
}

func WithToolHost(h tools.Host) Option {
	return func(opts *engineOptions) {
		opts.toolHost = h
	}
}

func WithTransport(t Transport) Option {
	return func(opts *engineOptions) {
		opts.transport = t
	}
}

func WithDialect(d Dialect) Option {
	return func(opts *engineOptions) {
		opts.dialect = d
	}
}

// WithProvider sets the transport and dialect of a provider in one go.
func WithProvider(t Transport, d Dialect) Option {
	return withOptions(WithTransport(t), WithDialect(d))
}

// WithDebug dumps every control message to stderr. Stdout is left to audio
// sinks.
func WithDebug(enabled bool) Option {
	return func(opts *engineOptions) {
		opts.debug = enabled
	}
}

// WithAudioStats logs uplink and downlink sample counters every interval.
func WithAudioStats(interval time.Duration) Option {
	return func(opts *engineOptions) {
		opts.statsEvery = interval
	}
}
