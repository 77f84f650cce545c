package models

import "time"

// Participant is a user's membership row in a conversation. A participant
// is active iff LeftAt is nil; removal is soft so a re-added user keeps
// their original JoinedAt.
type Participant struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	IsAdmin        bool       `json:"is_admin"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	IsMuted        bool       `json:"is_muted"`
	IsArchived     bool       `json:"is_archived"`
}

func NewParticipant(conversationID, userID string, isAdmin bool) *Participant {
	return &Participant{
		ConversationID: conversationID,
		UserID:         userID,
		IsAdmin:        isAdmin,
		JoinedAt:       time.Now().UTC(),
	}
}

func (p *Participant) IsActive() bool {
	return p.LeftAt == nil
}
