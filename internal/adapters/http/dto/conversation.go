package dto

import (
	"time"

	"github.com/ltessier/courier/internal/domain/models"
)

type CreateDirectRequest struct {
	UserID string `json:"userId"`
}

type CreateGroupRequest struct {
	Name         string   `json:"name,omitempty"`
	Participants []string `json:"participants"`
}

type AddParticipantsRequest struct {
	Participants []string `json:"participants"`
}

type SetAdminRequest struct {
	IsAdmin bool `json:"isAdmin"`
}

type UpdateConversationRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

type ConversationSettingsRequest struct {
	IsMuted    *bool `json:"isMuted,omitempty"`
	IsArchived *bool `json:"isArchived,omitempty"`
}

type ConversationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Created distinguishes a fresh direct conversation from an existing
	// one returned idempotently.
	Created *bool `json:"created,omitempty"`
}

func ConversationFromModel(c *models.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:        c.ID,
		Type:      string(c.Type),
		Name:      c.Name,
		AvatarURL: c.AvatarURL,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func ConversationListFromModels(convs []*models.Conversation) []*ConversationResponse {
	out := make([]*ConversationResponse, len(convs))
	for i, c := range convs {
		out[i] = ConversationFromModel(c)
	}
	return out
}

type ParticipantResponse struct {
	UserID     string     `json:"userId"`
	IsAdmin    bool       `json:"isAdmin"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
	IsMuted    bool       `json:"isMuted"`
	IsArchived bool       `json:"isArchived"`
}

func ParticipantListFromModels(parts []*models.Participant) []*ParticipantResponse {
	out := make([]*ParticipantResponse, len(parts))
	for i, p := range parts {
		out[i] = &ParticipantResponse{
			UserID:     p.UserID,
			IsAdmin:    p.IsAdmin,
			JoinedAt:   p.JoinedAt,
			LastReadAt: p.LastReadAt,
			IsMuted:    p.IsMuted,
			IsArchived: p.IsArchived,
		}
	}
	return out
}
