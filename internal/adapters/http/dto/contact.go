package dto

import (
	"time"

	"github.com/ltessier/courier/internal/domain/models"
)

type AddContactRequest struct {
	UserID string `json:"userId"`
}

type UpdateContactRequest struct {
	Nickname   *string `json:"nickname,omitempty"`
	IsFavorite *bool   `json:"isFavorite,omitempty"`
}

type ContactResponse struct {
	UserID     string    `json:"userId"`
	Nickname   string    `json:"nickname,omitempty"`
	IsBlocked  bool      `json:"isBlocked"`
	IsFavorite bool      `json:"isFavorite"`
	AddedAt    time.Time `json:"addedAt"`
}

func ContactFromModel(c *models.Contact) *ContactResponse {
	return &ContactResponse{
		UserID:     c.ContactID,
		Nickname:   c.Nickname,
		IsBlocked:  c.IsBlocked,
		IsFavorite: c.IsFavorite,
		AddedAt:    c.AddedAt,
	}
}

func ContactListFromModels(contacts []*models.Contact) []*ContactResponse {
	out := make([]*ContactResponse, len(contacts))
	for i, c := range contacts {
		out[i] = ContactFromModel(c)
	}
	return out
}
