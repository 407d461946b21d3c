package tools

import (
	"context"
	"errors"
	"sync"
)

var errNoElement = errors.New("no such element")

type recordingHost struct {
	mu       sync.Mutex
	calls    []string
	cleared  chan string
	elements map[string]bool
	panicOn  string
}

func newRecordingHost(elements ...string) *recordingHost {
	h := &recordingHost{
		cleared:  make(chan string, 16),
		elements: map[string]bool{},
	}
	for _, e := range elements {
		h.elements[e] = true
	}
	return h
}

func (h *recordingHost) record(call string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
}

func (h *recordingHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *recordingHost) check(id string) error {
	if id == h.panicOn {
		panic("host exploded")
	}
	if !h.elements[id] {
		return errNoElement
	}
	return nil
}

func (h *recordingHost) Navigate(_ context.Context, path string) error {
	h.record("navigate " + path)
	return nil
}

func (h *recordingHost) ScrollToElement(_ context.Context, id string) error {
	if err := h.check(id); err != nil {
		return err
	}
	h.record("scroll " + id)
	return nil
}

func (h *recordingHost) HighlightElement(_ context.Context, id string) error {
	if err := h.check(id); err != nil {
		return err
	}
	h.record("highlight " + id)
	return nil
}

func (h *recordingHost) ClearHighlight(_ context.Context, id string) error {
	h.record("clear " + id)
	h.cleared <- id
	return nil
}
