package generation

import (
	"context"
	"errors"
	"fmt"
)

// FallbackBackend attempts a primary backend first and falls back on error.
type FallbackBackend struct {
	primary  Backend
	fallback Backend
}

func NewFallbackBackend(primary, fallback Backend) *FallbackBackend {
	return &FallbackBackend{primary: primary, fallback: fallback}
}

func (b *FallbackBackend) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	if b.primary == nil {
		if b.fallback != nil {
			return b.fallback.Generate(ctx, prompt, cfg)
		}
		return "", fmt.Errorf("%w: fallback backend misconfigured", ErrUpstream)
	}
	text, err := b.primary.Generate(ctx, prompt, cfg)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || b.fallback == nil {
		return "", upstream("primary", err)
	}
	text, fbErr := b.fallback.Generate(ctx, prompt, cfg)
	if fbErr != nil {
		return "", fmt.Errorf("%w: primary: %v; fallback: %v", ErrUpstream, err, fbErr)
	}
	return text, nil
}
