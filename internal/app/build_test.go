package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/companion/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		MetricsNamespace:          "test_app",
		GenerationMode:            "mock",
		GenerationTimeout:         time.Second,
		GenerationTemperature:     0.9,
		GenerationTopP:            0.95,
		GenerationTopK:            40,
		GenerationMaxOutputTokens: 1024,
		ContextWindow:             8,
		PersonaName:               "Robin",
	}
}

func TestBuildInMemoryMock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := Build(ctx, testConfig(), log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Equal(t, "mock", res.Generation)
	assert.Equal(t, "Robin", res.Orchestrator.Persona().Name)

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()

	body := strings.NewReader(`{"userId":"u1","sessionId":"s1","message":"Are you a bot?"}`)
	httpRes, err := http.Post(ts.URL+"/message", "application/json", body)
	require.NoError(t, err)
	defer httpRes.Body.Close()
	raw, err := io.ReadAll(httpRes.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, httpRes.StatusCode)
	assert.Contains(t, string(raw), "No, I'm Robin!")
}

func TestBuildRejectsHTTPModeWithoutURL(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationMode = "http"
	_, err := Build(context.Background(), cfg, log.New(io.Discard))
	require.Error(t, err)
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Second, janitorInterval(0))
	assert.Equal(t, 3*time.Second, janitorInterval(30*time.Second))
	assert.Equal(t, time.Minute, janitorInterval(time.Hour))
}

func TestBuildWarnsWhenTopKIsIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.GenerationMode = "openai"
	cfg.GenerationAPIKey = "key"
	cfg.GenerationTopK = 10

	var buf strings.Builder
	res, err := Build(ctx, cfg, log.New(&buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Equal(t, "openai", res.Generation)
	assert.Contains(t, buf.String(), "GENERATION_TOP_K has no effect")
}
