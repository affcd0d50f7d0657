package generation

import (
	"context"
	"fmt"
	"strings"
)

// MockBackend provides deterministic local replies when no real backend is configured.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (b *MockBackend) Generate(ctx context.Context, prompt string, _ Config) (string, error) {
	select {
	case <-ctx.Done():
		return "", upstream("mock", ctx.Err())
	default:
	}
	return buildMockReply(prompt), nil
}

// buildMockReply echoes the last "User:" line of the prompt.
func buildMockReply(prompt string) string {
	said := ""
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "User: ") {
			said = strings.TrimSpace(strings.TrimPrefix(line, "User: "))
		}
	}
	if said == "" {
		return "Sorry, say that again?"
	}
	return fmt.Sprintf("Ha, I hear you: %s", said)
}
