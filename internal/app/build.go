package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/companion/internal/chat"
	"github.com/ent0n29/companion/internal/config"
	"github.com/ent0n29/companion/internal/generation"
	"github.com/ent0n29/companion/internal/httpapi"
	"github.com/ent0n29/companion/internal/memory"
	"github.com/ent0n29/companion/internal/observability"
	"github.com/ent0n29/companion/internal/persona"
	"github.com/ent0n29/companion/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Memory       *memory.Service
	Sessions     *session.Tracker
	Orchestrator *chat.Orchestrator
	Metrics      *observability.Metrics
	Generation   string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires the service from cfg. Background work (the session janitor)
// stops when ctx is cancelled.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}
	mem := memory.NewService(store)

	backend, err := generation.NewBackend(generation.Options{
		Mode:    cfg.GenerationMode,
		APIKey:  cfg.GenerationAPIKey,
		BaseURL: cfg.GenerationBaseURL,
		Model:   cfg.GenerationModel,
		HTTPURL: cfg.GenerationHTTPURL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("generation backend init failed: %w", err)
	}
	backendName := generation.Describe(backend)
	if cfg.GenerationTopK != generation.DefaultConfig().TopK && generation.IgnoresTopK(backend) {
		logger.Warn("GENERATION_TOP_K has no effect on this backend", "backend", backendName, "top_k", cfg.GenerationTopK)
	}

	character := persona.Default().WithName(cfg.PersonaName)
	orchestrator := chat.New(mem, generation.WithTimeout(backend, cfg.GenerationTimeout),
		chat.WithPersona(character),
		chat.WithContextWindow(cfg.ContextWindow),
		chat.WithGenerationConfig(generation.Config{
			Temperature:     cfg.GenerationTemperature,
			TopP:            cfg.GenerationTopP,
			TopK:            cfg.GenerationTopK,
			MaxOutputTokens: cfg.GenerationMaxOutputTokens,
		}),
		chat.WithLogger(logger.WithPrefix("chat")),
		chat.WithMetrics(metrics),
	)

	sessions := session.NewTracker(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))

		endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := mem.EndSession(endCtx, s.UserID, s.SessionID); err != nil {
			metrics.StoreErrors.WithLabelValues("end_session").Inc()
			logger.Error("ending idle session failed", "user_id", s.UserID, "session_id", s.SessionID, "err", err)
			return
		}
		logger.Debug("idle session ended", "user_id", s.UserID, "session_id", s.SessionID)
	})
	sessions.StartJanitor(ctx, janitorInterval(cfg.SessionInactivityTimeout))

	api := httpapi.New(cfg, orchestrator, mem, sessions, metrics, logger.WithPrefix("http"))

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Memory:       mem,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Generation:   backendName,
		Cleanup:      store.Close,
	}, nil
}

// janitorInterval sweeps often enough that a session outlives its timeout
// by at most a tenth of it, bounded to [1s, 1m].
func janitorInterval(timeout time.Duration) time.Duration {
	return min(max(timeout/10, time.Second), time.Minute)
}
