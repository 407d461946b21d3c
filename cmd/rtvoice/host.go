package main

import (
	"context"
	"log/slog"
)

// logHost stands in for a page: it logs every requested action.
type logHost struct {
	log *slog.Logger
}

func newLogHost(log *slog.Logger) *logHost {
	return &logHost{log: log.With(slog.String("component", "host"))}
}

func (h *logHost) Navigate(_ context.Context, path string) error {
	h.log.Info("navigate", slog.String("path", path))
	return nil
}

func (h *logHost) ScrollToElement(_ context.Context, id string) error {
	h.log.Info("scroll", slog.String("element_id", id))
	return nil
}

func (h *logHost) HighlightElement(_ context.Context, id string) error {
	h.log.Info("highlight", slog.String("element_id", id))
	return nil
}

func (h *logHost) ClearHighlight(_ context.Context, id string) error {
	h.log.Info("clear highlight", slog.String("element_id", id))
	return nil
}
