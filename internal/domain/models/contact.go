package models

import "time"

// Contact is a directional relationship owned by OwnerID. Blocking is
// directional: "A blocks B" means B cannot send to A. For a direct
// conversation the effective block is the OR of both directions.
type Contact struct {
	OwnerID    string    `json:"owner_id"`
	ContactID  string    `json:"contact_id"`
	Nickname   string    `json:"nickname,omitempty"`
	IsBlocked  bool      `json:"is_blocked"`
	IsFavorite bool      `json:"is_favorite"`
	AddedAt    time.Time `json:"added_at"`
}

func NewContact(ownerID, contactID string) *Contact {
	return &Contact{
		OwnerID:   ownerID,
		ContactID: contactID,
		AddedAt:   time.Now().UTC(),
	}
}
