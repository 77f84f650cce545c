package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ltessier/courier/internal/adapters/metrics"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

// MessageService owns the send/edit/delete state machine and the
// delivery/read transitions. It is the only path that writes messages.
type MessageService struct {
	tx            ports.TransactionManager
	messages      ports.MessageRepository
	statuses      ports.MessageStatusRepository
	conversations ports.ConversationRepository
	participants  ports.ParticipantRepository
	contacts      ports.ContactRepository
	users         ports.UserRepository
	cache         ports.MessageCache
	bus           ports.EventBus
	limiter       ports.RateLimiter
	ids           ports.IDGenerator
}

func NewMessageService(
	tx ports.TransactionManager,
	messages ports.MessageRepository,
	statuses ports.MessageStatusRepository,
	conversations ports.ConversationRepository,
	participants ports.ParticipantRepository,
	contacts ports.ContactRepository,
	users ports.UserRepository,
	cache ports.MessageCache,
	bus ports.EventBus,
	limiter ports.RateLimiter,
	ids ports.IDGenerator,
) *MessageService {
	return &MessageService{
		tx:            tx,
		messages:      messages,
		statuses:      statuses,
		conversations: conversations,
		participants:  participants,
		contacts:      contacts,
		users:         users,
		cache:         cache,
		bus:           bus,
		limiter:       limiter,
		ids:           ids,
	}
}

// SendInput is a message:send request after transport decoding.
type SendInput struct {
	ConversationID string
	Content        string
	ReplyToID      string
	TempID         string
}

// Send validates, rate-limits, persists and broadcasts a new message.
// The returned message is already visible to every instance.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendInput) (*models.Message, error) {
	if in.ConversationID == "" {
		return nil, errs.InvalidConversation("conversationId is required")
	}

	content, err := models.ValidateContent(in.Content)
	if err != nil {
		return nil, err
	}

	retryAfter, err := s.limiter.AllowSend(ctx, senderID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if retryAfter > 0 {
		metrics.RateLimitRejections.WithLabelValues("send").Inc()
		return nil, errs.RateLimited(retryAfter.Milliseconds())
	}

	conversation, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, errs.ConversationNotFound()
	}

	if _, err := s.participants.GetActive(ctx, in.ConversationID, senderID); err != nil {
		return nil, errs.NotParticipant()
	}

	if !conversation.IsGroup() {
		if err := s.checkBlocked(ctx, conversation, senderID); err != nil {
			return nil, err
		}
	}

	message := models.NewMessage(s.ids.MessageID(), in.ConversationID, senderID, content, in.ReplyToID)

	var recipients []string
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, message); err != nil {
			return err
		}

		active, err := s.participants.ListActive(ctx, in.ConversationID)
		if err != nil {
			return err
		}
		for _, p := range active {
			if p.UserID != senderID {
				recipients = append(recipients, p.UserID)
			}
		}

		if err := s.statuses.CreateBatch(ctx, message.ID, recipients); err != nil {
			return err
		}
		return s.conversations.Touch(ctx, in.ConversationID, message.CreatedAt)
	})
	if err != nil {
		return nil, errs.Database(err)
	}

	metrics.MessagesTotal.WithLabelValues("send").Inc()
	s.updateCachesAfterSend(ctx, message, recipients)
	s.broadcastNew(ctx, message, in.TempID)

	return message, nil
}

// checkBlocked enforces directional blocks on direct conversations. A
// store failure falls open: delivery wins over strict enforcement.
func (s *MessageService) checkBlocked(ctx context.Context, conversation *models.Conversation, senderID string) error {
	active, err := s.participants.ListActive(ctx, conversation.ID)
	if err != nil {
		slog.Warn("block check skipped, participant lookup failed", "error", err)
		return nil
	}

	var other string
	for _, p := range active {
		if p.UserID != senderID {
			other = p.UserID
			break
		}
	}
	if other == "" {
		return nil
	}

	blocked, err := s.contacts.IsBlockedEither(ctx, senderID, other)
	if err != nil {
		slog.Warn("block check skipped, contact lookup failed", "error", err)
		return nil
	}
	if blocked {
		return errs.Blocked()
	}
	return nil
}

func (s *MessageService) updateCachesAfterSend(ctx context.Context, message *models.Message, recipients []string) {
	// The cached first page is dropped, never patched; the next history
	// read rebuilds it from the store.
	if err := s.cache.InvalidateRecent(ctx, message.ConversationID); err != nil {
		slog.Warn("recent cache invalidation failed", "conversation_id", message.ConversationID, "error", err)
	}
	for _, userID := range recipients {
		if err := s.cache.IncrUnread(ctx, userID, message.ConversationID); err != nil {
			slog.Warn("unread counter update failed", "user_id", userID, "error", err)
		}
		if err := s.cache.SetDeliveryStatus(ctx, message.ID, userID, models.DeliverySent); err != nil {
			slog.Warn("delivery status cache update failed", "message_id", message.ID, "error", err)
		}
	}
}

func (s *MessageService) broadcastNew(ctx context.Context, message *models.Message, tempID string) {
	room := realtime.ConversationRoom(message.ConversationID)
	err := s.bus.Publish(ctx, room, protocol.TypeMessageNew, &protocol.MessageNew{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		ReplyToID:      message.ReplyToID,
		CreatedAt:      message.CreatedAt,
		TempID:         tempID,
	})
	if err != nil {
		slog.Error("message:new broadcast failed", "message_id", message.ID, "error", err)
	}

	err = s.bus.Publish(ctx, realtime.PersonalRoom(message.SenderID), protocol.TypeMessageSent, &protocol.MessageSent{
		TempID:    tempID,
		MessageID: message.ID,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		slog.Error("message:sent confirmation failed", "message_id", message.ID, "error", err)
	}
}

// Edit replaces a message's content within the edit window. Only the
// sender may edit, and only while the window is open.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, content string) (*models.Message, error) {
	validated, err := models.ValidateContent(content)
	if err != nil {
		return nil, err
	}

	retryAfter, err := s.limiter.AllowModify(ctx, userID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if retryAfter > 0 {
		metrics.RateLimitRejections.WithLabelValues("modify").Inc()
		return nil, errs.RateLimited(retryAfter.Milliseconds())
	}

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, errs.MessageNotFound()
	}
	if message.SenderID != userID {
		return nil, errs.NotOwner()
	}

	now := time.Now().UTC()
	if !message.WithinEditWindow(now) {
		return nil, errs.EditWindowExpired()
	}

	if err := s.messages.UpdateContent(ctx, messageID, validated, now); err != nil {
		return nil, errs.Database(err)
	}
	message.Content = validated
	message.UpdatedAt = now

	metrics.MessagesTotal.WithLabelValues("edit").Inc()
	if err := s.cache.InvalidateRecent(ctx, message.ConversationID); err != nil {
		slog.Warn("cache invalidation failed", "conversation_id", message.ConversationID, "error", err)
	}

	err = s.bus.Publish(ctx, realtime.ConversationRoom(message.ConversationID), protocol.TypeMessageEdited, &protocol.MessageEdited{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		Content:        message.Content,
		UpdatedAt:      now,
	})
	if err != nil {
		slog.Error("message:edited broadcast failed", "message_id", message.ID, "error", err)
	}

	return message, nil
}

// Delete soft-deletes a message. Deleting an already-deleted message
// reports MESSAGE_NOT_FOUND and changes nothing.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	retryAfter, err := s.limiter.AllowModify(ctx, userID)
	if err != nil {
		return errs.Internal(err)
	}
	if retryAfter > 0 {
		metrics.RateLimitRejections.WithLabelValues("modify").Inc()
		return errs.RateLimited(retryAfter.Milliseconds())
	}

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return errs.MessageNotFound()
	}
	if message.SenderID != userID {
		return errs.NotOwner()
	}

	now := time.Now().UTC()
	if err := s.messages.SoftDelete(ctx, messageID, now); err != nil {
		return errs.MessageNotFound()
	}

	metrics.MessagesTotal.WithLabelValues("delete").Inc()
	if err := s.cache.InvalidateRecent(ctx, message.ConversationID); err != nil {
		slog.Warn("cache invalidation failed", "conversation_id", message.ConversationID, "error", err)
	}

	err = s.bus.Publish(ctx, realtime.ConversationRoom(message.ConversationID), protocol.TypeMessageDeleted, &protocol.MessageDeleted{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		DeletedAt:      now,
	})
	if err != nil {
		slog.Error("message:deleted broadcast failed", "message_id", message.ID, "error", err)
	}

	return nil
}

// MarkDelivered advances sent rows to delivered for the calling recipient
// and notifies each sender on their personal room only.
func (s *MessageService) MarkDelivered(ctx context.Context, userID string, messageIDs []string) error {
	updates, err := s.statuses.MarkDelivered(ctx, messageIDs, userID)
	if err != nil {
		return errs.Database(err)
	}

	bySender := make(map[string][]string)
	for _, u := range updates {
		bySender[u.SenderID] = append(bySender[u.SenderID], u.MessageID)
		if err := s.cache.SetDeliveryStatus(ctx, u.MessageID, userID, models.DeliveryDelivered); err != nil {
			slog.Warn("delivery status cache update failed", "message_id", u.MessageID, "error", err)
		}
	}

	for senderID, ids := range bySender {
		err := s.bus.Publish(ctx, realtime.PersonalRoom(senderID), protocol.TypeMessageDeliveryStatus, &protocol.MessageDeliveryStatus{
			MessageIDs: ids,
			UserID:     userID,
			Status:     string(models.DeliveryDelivered),
		})
		if err != nil {
			slog.Error("delivery status broadcast failed", "sender_id", senderID, "error", err)
		}
	}
	return nil
}

// MarkConversationRead marks everything in the conversation read up to
// now for the caller, resets unread counters, and notifies senders unless
// the reader hides read status.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	if _, err := s.participants.GetActive(ctx, conversationID, userID); err != nil {
		return errs.NotParticipant()
	}

	now := time.Now().UTC()
	updates, err := s.statuses.MarkRead(ctx, conversationID, userID, now)
	if err != nil {
		return errs.Database(err)
	}

	if len(updates) > 0 {
		latest := updates[0].CreatedAt
		for _, u := range updates {
			if u.CreatedAt.After(latest) {
				latest = u.CreatedAt
			}
		}
		if err := s.participants.SetLastRead(ctx, conversationID, userID, latest); err != nil {
			return errs.Database(err)
		}
	}

	if err := s.cache.ResetUnread(ctx, userID, conversationID); err != nil {
		slog.Warn("unread reset failed", "user_id", userID, "error", err)
	}

	s.notifyRead(ctx, userID, now, updates)
	return nil
}

// MarkMessagesRead marks specific messages read for the caller.
func (s *MessageService) MarkMessagesRead(ctx context.Context, userID string, messageIDs []string) error {
	updates, err := s.statuses.MarkReadByIDs(ctx, messageIDs, userID)
	if err != nil {
		return errs.Database(err)
	}
	s.notifyRead(ctx, userID, time.Now().UTC(), updates)
	return nil
}

// notifyRead publishes read receipts to each sender's personal room. The
// transition is always persisted; only the broadcast honors the reader's
// hide_read_status preference.
func (s *MessageService) notifyRead(ctx context.Context, readerID string, at time.Time, updates []models.StatusUpdate) {
	if len(updates) == 0 {
		return
	}

	for _, u := range updates {
		if err := s.cache.SetDeliveryStatus(ctx, u.MessageID, readerID, models.DeliveryRead); err != nil {
			slog.Warn("delivery status cache update failed", "message_id", u.MessageID, "error", err)
		}
	}

	reader, err := s.users.GetByID(ctx, readerID)
	if err == nil && reader.HideReadStatus {
		return
	}

	bySender := make(map[string][]string)
	for _, u := range updates {
		bySender[u.SenderID] = append(bySender[u.SenderID], u.MessageID)
	}
	for senderID, ids := range bySender {
		err := s.bus.Publish(ctx, realtime.PersonalRoom(senderID), protocol.TypeMessageReadStatus, &protocol.MessageReadStatus{
			MessageIDs: ids,
			UserID:     readerID,
			Status:     string(models.DeliveryRead),
			Timestamp:  at,
		})
		if err != nil {
			slog.Error("read status broadcast failed", "sender_id", senderID, "error", err)
		}
	}
}
