package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// NamedCall is implemented by the typed parameters of a tool.
type NamedCall interface {
	ToolName() string
}

type Handler interface {
	ToolName() string
	Handle(ctx context.Context, b *Bridge, params map[string]any) (string, error)
}

type typedHandler[I NamedCall] struct {
	name string
	h    func(context.Context, *Bridge, I) (string, error)
}

func (t *typedHandler[I]) ToolName() string {
	return t.name
}

func (t *typedHandler[I]) Handle(ctx context.Context, b *Bridge, params map[string]any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	var in I
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", fmt.Errorf("unmarshal into type: %w", err)
	}

	return t.h(ctx, b, in)
}

// HandleCall builds a Handler that decodes its parameters into T.
func HandleCall[T NamedCall](handler func(context.Context, *Bridge, T) (string, error)) Handler {
	var zero T
	return &typedHandler[T]{
		name: zero.ToolName(),
		h:    handler,
	}
}
