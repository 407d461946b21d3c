package tools

import (
	"context"
	"fmt"
)

const (
	ToolNavigate  = "navigate"
	ToolScroll    = "scroll_to_element"
	ToolHighlight = "highlight_element"
)

type NavigateParams struct {
	Section string `json:"section"`
}

func (NavigateParams) ToolName() string { return ToolNavigate }

type ScrollParams struct {
	ElementID string `json:"element_id"`
}

func (ScrollParams) ToolName() string { return ToolScroll }

type HighlightParams struct {
	ElementID string `json:"element_id"`
}

func (HighlightParams) ToolName() string { return ToolHighlight }

func builtin() []Handler {
	return []Handler{
		HandleCall(func(ctx context.Context, b *Bridge, p NavigateParams) (string, error) {
			path, err := b.resolveSection(p.Section)
			if err != nil {
				return "", err
			}
			if err := b.host.Navigate(ctx, path); err != nil {
				return "", fmt.Errorf("navigate to %s: %w", path, err)
			}
			return fmt.Sprintf("navigated to %s", path), nil
		}),
		HandleCall(func(ctx context.Context, b *Bridge, p ScrollParams) (string, error) {
			if p.ElementID == "" {
				return "", fmt.Errorf("%w: element_id", ErrMissingParam)
			}
			if err := b.host.ScrollToElement(ctx, p.ElementID); err != nil {
				return "", fmt.Errorf("scroll to %s: %w", p.ElementID, err)
			}
			return fmt.Sprintf("scrolled to %s", p.ElementID), nil
		}),
		HandleCall(func(ctx context.Context, b *Bridge, p HighlightParams) (string, error) {
			if p.ElementID == "" {
				return "", fmt.Errorf("%w: element_id", ErrMissingParam)
			}
			if err := b.host.HighlightElement(ctx, p.ElementID); err != nil {
				return "", fmt.Errorf("highlight %s: %w", p.ElementID, err)
			}
			b.scheduleClear(p.ElementID)
			return fmt.Sprintf("highlighted %s for %s", p.ElementID, b.hlFor), nil
		}),
	}
}
