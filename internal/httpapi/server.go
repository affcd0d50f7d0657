package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/companion/internal/chat"
	"github.com/ent0n29/companion/internal/config"
	"github.com/ent0n29/companion/internal/memory"
	"github.com/ent0n29/companion/internal/observability"
	"github.com/ent0n29/companion/internal/policy"
	"github.com/ent0n29/companion/internal/session"
)

// Responder produces the companion's reply to one message.
type Responder interface {
	Respond(ctx context.Context, userID, sessionID, message string) (chat.Reply, error)
}

// MemoryService is the read and lifecycle side of user memory.
type MemoryService interface {
	Summary(ctx context.Context, userID string) (*memory.MemorySummary, error)
	Context(ctx context.Context, userID, sessionID string, limit int) ([]memory.Message, error)
	PastConversations(ctx context.Context, userID string, limit int) ([]memory.PastConversation, error)
	EndSession(ctx context.Context, userID, sessionID string) (bool, error)
	DeleteUser(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

type Server struct {
	cfg      config.Config
	chat     Responder
	memory   MemoryService
	sessions *session.Tracker
	metrics  *observability.Metrics
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, responder Responder, mem MemoryService, sessions *session.Tracker, metrics *observability.Metrics, logger *log.Logger) *Server {
	return &Server{
		cfg:      cfg,
		chat:     responder,
		memory:   mem,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.cfg.AllowAnyOrigin {
		r.Use(allowAnyOrigin())
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Post("/message", s.handleMessage)
	r.Get("/profile/{userId}", s.handleProfile)
	r.Get("/history/{userId}/{sessionId}", s.handleHistory)
	r.Get("/conversations/{userId}", s.handleConversations)
	r.Post("/session/start", s.handleStartSession)
	r.Post("/session/end", s.handleEndSession)
	r.Delete("/user/{userId}", s.handleDeleteUser)

	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.memory.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "err", err)
		respondError(w, http.StatusServiceUnavailable, "Memory store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Route not found: "+r.URL.RequestURI())
}

type messageRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	in, err := policy.ValidateChat(req.UserID, req.SessionID, req.Message)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.sessions.Touch(in.UserID, in.SessionID)
	reply, err := s.chat.Respond(r.Context(), in.UserID, in.SessionID, in.Message)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Response: reply.Text, Timestamp: reply.Timestamp})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := policy.Required("userId", chi.URLParam(r, "userId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	profile, err := s.memory.Summary(r.Context(), userID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := policy.Required("userId", chi.URLParam(r, "userId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	sessionID, err := policy.Required("sessionId", chi.URLParam(r, "sessionId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	msgs, err := s.memory.Context(r.Context(), userID, sessionID, memory.HistoryLimit)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := policy.Required("userId", chi.URLParam(r, "userId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondFailure(w, r, &policy.ValidationError{Field: "limit", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	past, err := s.memory.PastConversations(r.Context(), userID, limit)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if past == nil {
		past = []memory.PastConversation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": past})
}

type sessionRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	userID, err := policy.Required("userId", req.UserID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	sess := s.sessions.Start(userID)
	s.metrics.SessionEvents.WithLabelValues("started").Inc()
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusOK, map[string]any{"sessionId": sess.SessionID})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	userID, err := policy.Required("userId", req.UserID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	sessionID, err := policy.Required("sessionId", req.SessionID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if err := s.endSession(r.Context(), userID, sessionID); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Session ended successfully"})
}

// endSession closes the conversation and the tracked session. Ending an
// unknown or already-ended session is a no-op.
func (s *Server) endSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.memory.EndSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if _, ok := s.sessions.End(userID, sessionID); ok {
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
	return nil
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := policy.Required("userId", chi.URLParam(r, "userId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if err := s.memory.DeleteUser(r.Context(), userID); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.sessions.Forget(userID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusOK, map[string]any{"message": "User data cleared successfully"})
}
