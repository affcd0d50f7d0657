package generation

import (
	"errors"
	"fmt"
	"strings"
)

// Options controls backend construction.
type Options struct {
	Mode    string
	APIKey  string
	BaseURL string
	Model   string
	HTTPURL string
}

// NewBackend picks a backend by mode: openai, http, mock, or auto, which
// prefers openai when an API key is set, then http, then the mock.
func NewBackend(opts Options) (Backend, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoBackend(opts), nil
	case "openai":
		return NewOpenAIBackend(opts.APIKey, opts.BaseURL, opts.Model)
	case "http":
		if strings.TrimSpace(opts.HTTPURL) == "" {
			return nil, errors.New("generation HTTP url is required for http mode")
		}
		return NewHTTPBackend(opts.HTTPURL), nil
	case "mock":
		return NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported generation mode %q", opts.Mode)
	}
}

func newAutoBackend(opts Options) Backend {
	var secondary Backend = NewMockBackend()
	if strings.TrimSpace(opts.HTTPURL) != "" {
		secondary = NewHTTPBackend(opts.HTTPURL)
	}
	if strings.TrimSpace(opts.APIKey) != "" {
		if primary, err := NewOpenAIBackend(opts.APIKey, opts.BaseURL, opts.Model); err == nil {
			if _, isMock := secondary.(*MockBackend); isMock {
				return primary
			}
			return NewFallbackBackend(primary, secondary)
		}
	}
	return secondary
}

// Describe names the backend for logs and health output.
func Describe(b Backend) string {
	switch v := b.(type) {
	case *OpenAIBackend:
		return "openai"
	case *HTTPBackend:
		return "http"
	case *MockBackend:
		return "mock"
	case *FallbackBackend:
		return Describe(v.primary) + "+" + Describe(v.fallback)
	case *TimeoutBackend:
		return Describe(v.next)
	default:
		return "custom"
	}
}

// IgnoresTopK reports whether b routes requests to a backend that cannot
// send top-k, so a configured value would have no effect.
func IgnoresTopK(b Backend) bool {
	switch v := b.(type) {
	case *OpenAIBackend:
		return true
	case *FallbackBackend:
		return IgnoresTopK(v.primary)
	case *TimeoutBackend:
		return IgnoresTopK(v.next)
	default:
		return false
	}
}
