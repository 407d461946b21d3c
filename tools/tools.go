// Package tools executes the page capabilities a conversational model may
// invoke during a voice session and turns every outcome into result text.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/proto"
)

var (
	// ErrExecution wraps every failure raised while running a tool.
	ErrExecution = errors.New("tool execution failed")

	ErrUnknownTool    = errors.New("unknown tool")
	ErrUnknownSection = errors.New("unknown section")
	ErrMissingParam   = errors.New("missing parameter")
)

// Host is the capability surface of the surrounding page.
type Host interface {
	Navigate(ctx context.Context, path string) error
	ScrollToElement(ctx context.Context, id string) error
	HighlightElement(ctx context.Context, id string) error
	ClearHighlight(ctx context.Context, id string) error
}

type Option func(*bridgeOptions)

type bridgeOptions struct {
	logger            *slog.Logger
	sections          map[string]string
	highlightDuration time.Duration
}

func WithLogger(l *slog.Logger) Option {
	return func(o *bridgeOptions) {
		o.logger = l
	}
}

// WithSections maps section names to page paths for the navigate tool.
func WithSections(sections map[string]string) Option {
	return func(o *bridgeOptions) {
		o.sections = sections
	}
}

func WithHighlightDuration(d time.Duration) Option {
	return func(o *bridgeOptions) {
		o.highlightDuration = d
	}
}

// FromConfig applies the tool related settings of cfg.
func FromConfig(cfg *config.Config) Option {
	return func(o *bridgeOptions) {
		o.sections = cfg.Sections
		o.highlightDuration = cfg.HighlightDuration
	}
}

func (o *bridgeOptions) withDefaults() *bridgeOptions {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.highlightDuration <= 0 {
		o.highlightDuration = config.DefaultHighlightDuration
	}
	return o
}

// Bridge dispatches tool calls into a Host. It is safe for concurrent use.
type Bridge struct {
	host     Host
	handlers map[string]Handler
	sections map[string]string
	hlFor    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	// gen invalidates highlight timers that fire after Reset.
	gen uint64
}

func NewBridge(host Host, opts ...Option) *Bridge {
	o := &bridgeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	o.withDefaults()

	b := &Bridge{
		host:     host,
		sections: o.sections,
		hlFor:    o.highlightDuration,
		logger:   o.logger.With(slog.String("component", "tools")),
		timers:   map[string]*time.Timer{},
		handlers: map[string]Handler{},
	}
	for _, h := range builtin() {
		b.handlers[h.ToolName()] = h
	}
	return b
}

// Dispatch runs a single call. It always returns exactly one response whose
// ID matches the request; failures are reported as result text.
func (b *Bridge) Dispatch(ctx context.Context, req proto.ToolCallRequest) (res proto.ToolCallResponse) {
	res = proto.ToolCallResponse{ID: req.ID, Name: req.Name}
	log := b.logger.With(slog.String("tool", req.Name), slog.String("call_id", req.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("tool panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			res.Result = fmt.Sprintf("error: %s: %v", ErrExecution, r)
			res.Failed = true
		}
	}()

	h, ok := b.handlers[req.Name]
	if !ok {
		log.Warn("unknown tool requested")
		res.Result = fmt.Sprintf("%s: %q", ErrUnknownTool, req.Name)
		res.Failed = true
		return res
	}

	out, err := h.Handle(ctx, b, req.Params)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrExecution, err)
		log.Warn("tool failed", slog.Any("err", err))
		res.Result = "error: " + err.Error()
		res.Failed = true
		return res
	}

	log.Debug("tool executed", slog.String("result", out))
	res.Result = out
	return res
}

// DispatchAll runs a batch in order and returns one response per call.
func (b *Bridge) DispatchAll(ctx context.Context, calls []proto.ToolCallRequest) []proto.ToolCallResponse {
	out := make([]proto.ToolCallResponse, 0, len(calls))
	for _, c := range calls {
		out = append(out, b.Dispatch(ctx, c))
	}
	return out
}

// Reset stops all pending highlight timers and clears their highlights right
// away.
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.gen++
	ids := make([]string, 0, len(b.timers))
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
		ids = append(ids, id)
	}
	b.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		if err := b.host.ClearHighlight(context.Background(), id); err != nil {
			b.logger.Warn("failed to clear highlight", slog.String("element_id", id), slog.Any("err", err))
		}
	}
}

// Pending returns the number of highlights waiting to be cleared.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

func (b *Bridge) resolveSection(section string) (string, error) {
	if section == "" {
		return "", fmt.Errorf("%w: section", ErrMissingParam)
	}
	if len(b.sections) == 0 {
		if section[0] == '/' {
			return section, nil
		}
		return "/" + section, nil
	}
	path, ok := b.sections[section]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	return path, nil
}

// scheduleClear removes the highlight of id after the configured duration.
// A repeated highlight of the same element restarts its timer.
func (b *Bridge) scheduleClear(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[id]; ok {
		t.Stop()
	}

	gen := b.gen
	var t *time.Timer
	t = time.AfterFunc(b.hlFor, func() {
		b.mu.Lock()
		if b.gen != gen || b.timers[id] != t {
			b.mu.Unlock()
			return
		}
		delete(b.timers, id)
		b.mu.Unlock()

		if err := b.host.ClearHighlight(context.Background(), id); err != nil {
			b.logger.Warn("failed to clear highlight", slog.String("element_id", id), slog.Any("err", err))
		}
	})
	b.timers[id] = t
}
