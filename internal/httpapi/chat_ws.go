package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/companion/internal/policy"
	"github.com/ent0n29/companion/internal/protocol"
)

const (
	wsReadLimit    = policy.MaxBodyBytes
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// invalidFrame carries a parse failure from the reader to the processor,
// which owns all outbound traffic.
type invalidFrame struct{ err error }

// handleChatWS serves one chat session over a websocket. Frames are
// answered strictly in arrival order.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := policy.Required("userId", q.Get("userId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	sessionID, err := policy.Required("sessionId", q.Get("sessionId"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.sessions.Touch(userID, sessionID)
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 16)
	outbound := make(chan any, 16)

	writerDone := make(chan struct{})
	go s.writeFrames(ctx, cancel, conn, outbound, writerDone)

	processDone := make(chan struct{})
	go func() {
		defer close(processDone)
		defer close(outbound)
		s.processFrames(ctx, userID, sessionID, inbound, outbound)
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		var frame any
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			frame = invalidFrame{err: err}
		} else {
			frame = parsed
			s.metrics.WSMessages.WithLabelValues("inbound", string(frameType(parsed))).Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- frame:
		}
	}

	cancel()
	close(inbound)
	<-processDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) processFrames(ctx context.Context, userID, sessionID string, inbound <-chan any, outbound chan<- any) {
	send := func(v any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- v:
			return true
		}
	}
	fail := func(code string, retryable bool, detail string) bool {
		return send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      code,
			Retryable: retryable,
			Detail:    detail,
		})
	}

	if !send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "session_ready"}) {
		return
	}

	for {
		var frame any
		select {
		case <-ctx.Done():
			return
		case f, ok := <-inbound:
			if !ok {
				return
			}
			frame = f
		}

		switch m := frame.(type) {
		case invalidFrame:
			if !fail("invalid_client_message", false, m.err.Error()) {
				return
			}
		case protocol.ChatMessage:
			in, err := policy.ValidateChat(userID, sessionID, m.Message)
			if err != nil {
				if !fail("invalid_message", false, err.Error()) {
					return
				}
				continue
			}
			s.sessions.Touch(userID, sessionID)
			// A reply already being built is finished and stored even if the
			// client goes away.
			reply, err := s.chat.Respond(context.WithoutCancel(ctx), in.UserID, in.SessionID, in.Message)
			if err != nil {
				s.logger.Error("chat reply failed", "user_id", userID, "session_id", sessionID, "err", err)
				if !fail("internal_error", true, "Internal server error") {
					return
				}
				continue
			}
			if !send(protocol.ChatReply{
				Type:      protocol.TypeChatReply,
				SessionID: sessionID,
				ClientID:  m.ClientID,
				Response:  reply.Text,
				Emotion:   string(reply.Emotion),
				Timestamp: reply.Timestamp,
			}) {
				return
			}
		case protocol.ClientControl:
			switch m.Action {
			case protocol.ActionPing:
				if !send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "pong"}) {
					return
				}
			case protocol.ActionEndSession:
				if err := s.endSession(context.WithoutCancel(ctx), userID, sessionID); err != nil {
					s.logger.Error("end session failed", "user_id", userID, "session_id", sessionID, "err", err)
					fail("internal_error", true, "Internal server error")
					return
				}
				send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "session_ended"})
				return
			}
		}
	}
}

// writeFrames is the only goroutine writing to conn. When outbound is
// closed it sends a normal close frame and closes the connection, which
// also unblocks the reader.
func (s *Server) writeFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan any, done chan<- struct{}) {
	defer close(done)
	defer cancel()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		case msg, ok := <-outbound:
			if !ok {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteTimeout))
				_ = conn.Close()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("websocket write failed", "err", err)
				}
				_ = conn.Close()
				return
			}
			s.metrics.WSMessages.WithLabelValues("outbound", string(frameType(msg))).Inc()
		}
	}
}

func frameType(v any) protocol.MessageType {
	switch m := v.(type) {
	case protocol.ChatMessage:
		return m.Type
	case protocol.ClientControl:
		return m.Type
	case protocol.ChatReply:
		return m.Type
	case protocol.SystemEvent:
		return m.Type
	case protocol.ErrorEvent:
		return m.Type
	default:
		return "unknown"
	}
}
