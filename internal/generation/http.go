package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/companion/internal/reliability"
)

// HTTPBackend posts prompts to a generic JSON completion endpoint.
type HTTPBackend struct {
	url         string
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
}

type httpRequest struct {
	Prompt           string `json:"prompt"`
	GenerationConfig Config `json:"generationConfig"`
}

func NewHTTPBackend(url string) *HTTPBackend {
	return &HTTPBackend{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries:  2,
		backoffBase: 200 * time.Millisecond,
		backoffCap:  2 * time.Second,
	}
}

func (b *HTTPBackend) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	payload, err := json.Marshal(httpRequest{Prompt: prompt, GenerationConfig: cfg})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, b.backoffBase, b.backoffCap)
			select {
			case <-ctx.Done():
				return "", upstream("http", ctx.Err())
			case <-time.After(wait):
			}
		}

		text, status, err := b.do(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if status == 0 || !reliability.IsRetryableHTTPStatus(status) {
			break
		}
	}
	return "", upstream("http", lastErr)
}

func (b *HTTPBackend) do(ctx context.Context, payload []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := b.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", res.StatusCode, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", res.StatusCode, fmt.Errorf("read response: %w", err)
	}

	text := strings.TrimSpace(string(body))
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		text = strings.TrimSpace(extractText(obj))
	}
	if text == "" {
		return "", res.StatusCode, ErrEmptyCompletion
	}
	return text, res.StatusCode, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "completion", "response", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
