package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ltessier/courier/internal/domain/errs"
)

const (
	// MaxContentLength is the maximum message length in runes after
	// trimming. Counting bytes would shortchange non-ASCII content.
	MaxContentLength = 10000

	// EditWindow is how long after creation the sender may edit a message.
	// Deletion is not window-bound.
	EditWindow = 15 * time.Minute
)

// Message is one message in a conversation. Deletion is soft (DeletedAt);
// sender and conversation are immutable after creation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	ReplyToID      string     `json:"reply_to_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func NewMessage(id, conversationID, senderID, content, replyToID string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		ReplyToID:      replyToID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ValidateContent trims the raw content and enforces the length rules.
// Whitespace-only content counts as empty.
func ValidateContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", errs.ContentEmpty()
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", errs.ContentTooLong(MaxContentLength)
	}
	return content, nil
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// IsEdited reports whether the message has been modified since creation.
func (m *Message) IsEdited() bool {
	return m.UpdatedAt.After(m.CreatedAt)
}

// WithinEditWindow reports whether now is still inside the edit window.
func (m *Message) WithinEditWindow(now time.Time) bool {
	return now.Sub(m.CreatedAt) < EditWindow
}
