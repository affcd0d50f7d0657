// Package chat decides how the companion answers each inbound message.
package chat

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/companion/internal/emotion"
	"github.com/ent0n29/companion/internal/generation"
	"github.com/ent0n29/companion/internal/memory"
	"github.com/ent0n29/companion/internal/observability"
	"github.com/ent0n29/companion/internal/persona"
	"github.com/ent0n29/companion/internal/policy"
)

// Path names the branch that produced a reply.
type Path string

const (
	PathIdentity  Path = "identity"
	PathGreeting  Path = "greeting"
	PathGenerated Path = "generated"
	PathFallback  Path = "fallback"
)

// DefaultContextWindow is how many recent messages are loaded per reply.
const DefaultContextWindow = 8

// Reply is the companion's answer to one message.
type Reply struct {
	Text      string        `json:"response"`
	Path      Path          `json:"path"`
	Emotion   emotion.Label `json:"emotion"`
	Timestamp time.Time     `json:"timestamp"`
}

// Memory is the subset of the memory service the orchestrator needs.
type Memory interface {
	AppendMessage(ctx context.Context, userID, sessionID string, role memory.Role, content string, mood emotion.Label) (memory.Conversation, error)
	Context(ctx context.Context, userID, sessionID string, limit int) ([]memory.Message, error)
	Summary(ctx context.Context, userID string) (*memory.MemorySummary, error)
}

// Picker returns an index in [0, n). Tests inject a deterministic one.
type Picker func(n int) int

// Orchestrator runs the reply pipeline: identity check, greeting check,
// prompt assembly, generation and persistence. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	persona persona.Persona
	memory  Memory
	backend generation.Backend
	genCfg  generation.Config
	window  int
	pick    Picker
	logger  *log.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithPersona(p persona.Persona) Option { return func(o *Orchestrator) { o.persona = p } }

func WithGenerationConfig(cfg generation.Config) Option {
	return func(o *Orchestrator) { o.genCfg = cfg }
}

func WithContextWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.window = n
		}
	}
}

func WithPicker(p Picker) Option { return func(o *Orchestrator) { o.pick = p } }

func WithLogger(l *log.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithMetrics(m *observability.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func New(mem Memory, backend generation.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		persona: persona.Default(),
		memory:  mem,
		backend: backend,
		genCfg:  generation.DefaultConfig(),
		window:  DefaultContextWindow,
		pick:    rand.Intn,
		logger:  log.New(io.Discard),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Persona returns the character this orchestrator plays.
func (o *Orchestrator) Persona() persona.Persona { return o.persona }

// Respond produces the reply to message. Generation failures never surface
// as errors: they yield a fallback apology and only the user's turn is
// stored. Store failures are returned.
func (o *Orchestrator) Respond(ctx context.Context, userID, sessionID, message string) (Reply, error) {
	o.logger.Debug("chat message", "user_id", userID, "session_id", sessionID, "preview", policy.LogPreview(message))

	if answer, ok := IdentityAnswer(o.persona, message); ok {
		if err := o.persistTurns(ctx, userID, sessionID, message, emotion.Curious, answer, emotion.Confident); err != nil {
			return Reply{}, err
		}
		return o.reply(answer, PathIdentity, emotion.Curious), nil
	}

	summary, err := o.memory.Summary(ctx, userID)
	if err != nil {
		o.storeFailed("summary", err)
		return Reply{}, err
	}
	recent, err := o.memory.Context(ctx, userID, sessionID, o.window)
	if err != nil {
		o.storeFailed("context", err)
		return Reply{}, err
	}
	mood := emotion.Detect(message)

	if IsGreeting(message) && len(recent) == 0 {
		name := ""
		if summary != nil {
			name = summary.Name
		}
		greeting := o.choose(Greetings(name))
		if err := o.persistTurns(ctx, userID, sessionID, message, mood, greeting, emotion.Friendly); err != nil {
			return Reply{}, err
		}
		return o.reply(greeting, PathGreeting, mood), nil
	}

	system := persona.Compose(o.persona, summary, recent) + "\n\n" + persona.EmotionDirective(mood)
	prompt := persona.TurnPrompt(system, message, o.persona.Name)

	start := time.Now()
	text, genErr := o.backend.Generate(ctx, prompt, o.genCfg)
	if o.metrics != nil {
		o.metrics.ObserveGeneration(time.Since(start))
	}
	if genErr == nil {
		if text = cleanReply(text, o.persona.Name); text == "" {
			genErr = generation.ErrEmptyCompletion
		}
	}
	if genErr != nil {
		o.generationFailed(userID, sessionID, genErr)
		if _, err := o.memory.AppendMessage(ctx, userID, sessionID, memory.RoleUser, message, mood); err != nil {
			o.storeFailed("append", err)
			return Reply{}, err
		}
		return o.reply(o.choose(FallbackReplies), PathFallback, mood), nil
	}

	if err := o.persistTurns(ctx, userID, sessionID, message, mood, text, emotion.Engaged); err != nil {
		return Reply{}, err
	}
	return o.reply(text, PathGenerated, mood), nil
}

func (o *Orchestrator) persistTurns(ctx context.Context, userID, sessionID, userText string, userMood emotion.Label, botText string, botMood emotion.Label) error {
	if _, err := o.memory.AppendMessage(ctx, userID, sessionID, memory.RoleUser, userText, userMood); err != nil {
		o.storeFailed("append", err)
		return err
	}
	if _, err := o.memory.AppendMessage(ctx, userID, sessionID, memory.RoleAssistant, botText, botMood); err != nil {
		o.storeFailed("append", err)
		return err
	}
	return nil
}

func (o *Orchestrator) reply(text string, path Path, mood emotion.Label) Reply {
	if o.metrics != nil {
		o.metrics.Replies.WithLabelValues(string(path)).Inc()
	}
	return Reply{Text: text, Path: path, Emotion: mood, Timestamp: o.now()}
}

func (o *Orchestrator) choose(options []string) string {
	i := o.pick(len(options))
	if i < 0 || i >= len(options) {
		i = 0
	}
	return options[i]
}

func (o *Orchestrator) generationFailed(userID, sessionID string, err error) {
	reason := "upstream"
	if errors.Is(err, generation.ErrTimeout) {
		reason = "timeout"
	}
	o.logger.Warn("generation failed, replying with fallback", "user_id", userID, "session_id", sessionID, "reason", reason, "err", err)
	if o.metrics != nil {
		o.metrics.GenerationErrors.WithLabelValues(reason).Inc()
	}
}

func (o *Orchestrator) storeFailed(op string, err error) {
	o.logger.Error("memory store failed", "op", op, "err", err)
	if o.metrics != nil {
		o.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}
