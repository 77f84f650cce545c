package dto

import (
	"time"

	"github.com/ltessier/courier/internal/domain/models"
)

// UserResponse is the public view of a user. Email is only included for
// the account owner.
type UserResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
	Status      string     `json:"status"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func UserFromModel(u *models.User, includeEmail bool) *UserResponse {
	resp := &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		Status:      string(u.Status),
		LastSeenAt:  u.LastSeenAt,
		CreatedAt:   u.CreatedAt,
	}
	if includeEmail {
		resp.Email = u.Email
	}
	return resp
}

func UserListFromModels(users []*models.User) []*UserResponse {
	out := make([]*UserResponse, len(users))
	for i, u := range users {
		out[i] = UserFromModel(u, false)
	}
	return out
}

type UpdateProfileRequest struct {
	DisplayName    *string `json:"displayName,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	AvatarURL      *string `json:"avatarUrl,omitempty"`
	HideReadStatus *bool   `json:"hideReadStatus,omitempty"`
}

type PresenceResponse struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func PresenceFromModel(p *models.Presence) *PresenceResponse {
	return &PresenceResponse{
		UserID:   p.UserID,
		Status:   string(p.Status),
		LastSeen: p.LastSeenAt,
	}
}
