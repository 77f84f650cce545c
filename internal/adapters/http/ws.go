package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

// dispatchTimeout bounds the handling of a single inbound frame.
const dispatchTimeout = 30 * time.Second

// WSHandler upgrades connections and dispatches the websocket protocol.
// A connection must authenticate (upgrade-request token or a first auth
// frame) before any other event type is accepted.
type WSHandler struct {
	hub           *realtime.Hub
	auth          *services.AuthService
	messages      *services.MessageService
	conversations *services.ConversationService
	presence      *services.PresenceService
	ids           ports.IDGenerator
	upgrader      websocket.Upgrader
}

func NewWSHandler(
	hub *realtime.Hub,
	auth *services.AuthService,
	messages *services.MessageService,
	conversations *services.ConversationService,
	presence *services.PresenceService,
	ids ports.IDGenerator,
	allowedOrigins []string,
) *WSHandler {
	h := &WSHandler{
		hub:           hub,
		auth:          auth,
		messages:      messages,
		conversations: conversations,
		presence:      presence,
		ids:           ids,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// wsSession is the per-connection dispatch state. userID is set once by a
// successful authentication and never changes afterwards.
type wsSession struct {
	h      *WSHandler
	client *realtime.Client
	userID string
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws: upgrade error", "error", err)
		return
	}

	sess := &wsSession{h: h}
	sess.client = realtime.NewClient(conn, "", h.ids.SessionID())

	// A token on the upgrade request authenticates immediately. A failed
	// token terminates the connection after the error frame drains.
	if token := upgradeToken(r); token != "" {
		if err := sess.authenticate(token); err != nil {
			sess.sendError("", err)
			sess.client.Close()
		}
	}

	go sess.client.WritePump()
	sess.client.ReadPump(sess.dispatch)

	if sess.userID != "" {
		h.hub.Unregister(sess.client)
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := h.presence.Disconnect(ctx, sess.userID); err != nil {
			slog.Warn("ws: disconnect presence error", "user_id", sess.userID, "error", err)
		}
	}
}

func upgradeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

// authenticate verifies the token and, on first success, registers the
// client and counts the presence connection.
func (s *wsSession) authenticate(token string) error {
	claims, err := s.h.auth.VerifyAccess(token)
	if err != nil {
		return err
	}
	if s.userID != "" {
		if claims.Subject != s.userID {
			return errs.InvalidToken()
		}
		s.sendAuthSuccess()
		return nil
	}

	s.userID = claims.Subject
	s.client.SetUserID(s.userID)
	s.h.hub.Register(s.client)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := s.h.presence.Connect(ctx, s.userID); err != nil {
		slog.Warn("ws: connect presence error", "user_id", s.userID, "error", err)
	}

	s.sendAuthSuccess()
	return nil
}

func (s *wsSession) sendAuthSuccess() {
	frame, err := protocol.Encode(protocol.TypeAuthSuccess, &protocol.AuthSuccess{
		UserID:    s.userID,
		SessionID: s.client.SessionID(),
	})
	if err != nil {
		slog.Error("ws: encode auth success error", "error", err)
		return
	}
	s.client.Send(frame)
}

// sendError maps err to a message:error frame. tempID correlates the
// failure with the client's optimistic message when present.
func (s *wsSession) sendError(tempID string, err error) {
	de := errs.AsDomain(err)
	if de.Status >= http.StatusInternalServerError {
		slog.Error("ws: dispatch error", "code", de.Code, "error", err)
	}

	frame, encErr := protocol.Encode(protocol.TypeMessageError, &protocol.MessageError{
		TempID:     tempID,
		Code:       string(de.Code),
		Message:    de.Message,
		RetryAfter: de.RetryAfter,
	})
	if encErr != nil {
		slog.Error("ws: encode error frame error", "error", encErr)
		return
	}
	s.client.Send(frame)
}

// dispatch routes one inbound frame. The event type set is closed;
// anything else is INVALID_PAYLOAD.
func (s *wsSession) dispatch(frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		s.sendError("", errs.InvalidPayload("malformed frame"))
		return
	}

	if env.Type == protocol.TypeAuth {
		var req protocol.AuthRequest
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed auth payload"))
			return
		}
		if err := s.authenticate(req.Token); err != nil {
			s.sendError("", err)
			s.client.Close()
		}
		return
	}

	if s.userID == "" {
		s.sendError("", errs.TokenRequired())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch env.Type {
	case protocol.TypeMessageSend:
		s.handleSend(ctx, env)

	case protocol.TypeMessageEdit:
		var req protocol.MessageEdit
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed edit payload"))
			return
		}
		if _, err := s.h.messages.Edit(ctx, s.userID, req.MessageID, req.Content); err != nil {
			s.sendError("", err)
		}

	case protocol.TypeMessageDelete:
		var req protocol.MessageDelete
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed delete payload"))
			return
		}
		if err := s.h.messages.Delete(ctx, s.userID, req.MessageID); err != nil {
			s.sendError("", err)
		}

	case protocol.TypeMessageDelivered:
		var req protocol.MessageDeliveredAck
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed delivered payload"))
			return
		}
		if err := s.h.messages.MarkDelivered(ctx, s.userID, req.MessageIDs); err != nil {
			s.sendError("", err)
		}

	case protocol.TypeMessageRead:
		var req protocol.MessageReadAck
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed read payload"))
			return
		}
		var readErr error
		if len(req.MessageIDs) > 0 {
			readErr = s.h.messages.MarkMessagesRead(ctx, s.userID, req.MessageIDs)
		} else if req.ConversationID != "" {
			readErr = s.h.messages.MarkConversationRead(ctx, s.userID, req.ConversationID)
		} else {
			readErr = errs.InvalidPayload("read requires a conversationId or messageIds")
		}
		if readErr != nil {
			s.sendError("", readErr)
		}

	case protocol.TypeConversationJoin:
		var req protocol.ConversationJoin
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed join payload"))
			return
		}
		if !s.h.conversations.IsParticipant(ctx, s.userID, req.ConversationID) {
			s.sendError("", errs.NotParticipant())
			return
		}
		s.h.hub.Join(s.client, realtime.ConversationRoom(req.ConversationID))

	case protocol.TypeConversationLeave:
		var req protocol.ConversationLeave
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed leave payload"))
			return
		}
		s.h.hub.Leave(s.client, realtime.ConversationRoom(req.ConversationID))

	case protocol.TypePresenceUpdate:
		var req protocol.PresenceSet
		if err := env.DecodeBody(&req); err != nil {
			s.sendError("", errs.InvalidPayload("malformed presence payload"))
			return
		}
		if err := s.h.presence.SetStatus(ctx, s.userID, models.UserStatus(req.Status)); err != nil {
			s.sendError("", err)
		}

	case protocol.TypeHeartbeat:
		if err := s.h.presence.Heartbeat(ctx, s.userID); err != nil {
			s.sendError("", err)
		}

	default:
		s.sendError("", errs.InvalidPayload("unknown event type "+env.Type))
	}
}

func (s *wsSession) handleSend(ctx context.Context, env *protocol.Envelope) {
	var req protocol.MessageSend
	if err := env.DecodeBody(&req); err != nil {
		s.sendError("", errs.InvalidPayload("malformed send payload"))
		return
	}

	_, err := s.h.messages.Send(ctx, s.userID, services.SendInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		ReplyToID:      req.ReplyToID,
		TempID:         req.TempID,
	})
	if err != nil {
		s.sendError(req.TempID, err)
		return
	}

	// A successful send proves participation, so the sender is joined to
	// the room even without an explicit conversation:join.
	s.h.hub.Join(s.client, realtime.ConversationRoom(req.ConversationID))
}
