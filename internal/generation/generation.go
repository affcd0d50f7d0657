// Package generation talks to the text-generation backend that writes the
// companion's replies. The backend is opaque: a prompt goes in, a
// completion comes out, and any failure is reported as ErrUpstream.
package generation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUpstream marks every failure of the generation backend.
	ErrUpstream = errors.New("generation backend failure")
	// ErrTimeout is returned when a call outlives its deadline.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrUpstream)
	// ErrEmptyCompletion is returned when the backend answers with no text.
	ErrEmptyCompletion = fmt.Errorf("%w: empty completion", ErrUpstream)
)

// Config holds the sampling parameters sent with every request.
type Config struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultConfig mirrors the tuning the companion shipped with.
func DefaultConfig() Config {
	return Config{
		Temperature:     0.9,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

// Backend produces a completion for a fully assembled prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string, cfg Config) (string, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, prompt string, cfg Config) (string, error)

func (f BackendFunc) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	return f(ctx, prompt, cfg)
}

func upstream(provider string, err error) error {
	if err == nil || errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, provider, err)
}
