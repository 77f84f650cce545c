package dto

import (
	"time"

	"github.com/ltessier/courier/internal/domain/models"
)

type SendMessageRequest struct {
	Content   string `json:"content"`
	ReplyToID string `json:"replyToId,omitempty"`
	TempID    string `json:"tempId,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds,omitempty"`
}

// MessageResponse hides the content of soft-deleted messages while
// keeping the tombstone visible.
type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content"`
	ReplyToID      string     `json:"replyToId,omitempty"`
	IsEdited       bool       `json:"isEdited"`
	IsDeleted      bool       `json:"isDeleted"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

func MessageFromModel(m *models.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		ReplyToID:      m.ReplyToID,
		IsEdited:       m.IsEdited(),
		IsDeleted:      m.IsDeleted(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		DeletedAt:      m.DeletedAt,
	}
	if resp.IsDeleted {
		resp.Content = ""
	}
	return resp
}

func MessageListFromModels(messages []*models.Message) []*MessageResponse {
	out := make([]*MessageResponse, len(messages))
	for i, m := range messages {
		out[i] = MessageFromModel(m)
	}
	return out
}

type HistoryResponse struct {
	Messages   []*MessageResponse `json:"messages"`
	NextCursor string             `json:"nextCursor,omitempty"`
	HasMore    bool               `json:"hasMore"`
	Cached     bool               `json:"cached"`
}

type UnreadResponse struct {
	TotalUnread    int64            `json:"totalUnread"`
	ByConversation map[string]int64 `json:"byConversation"`
}
