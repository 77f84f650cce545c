package models

import "time"

// Session is a refresh-token session. Rotating the refresh token updates
// RefreshToken and ExpiresAt in place; logout deactivates the row.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewSession(id, userID, refreshToken string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(ttl),
		LastUsedAt:   now,
		Active:       true,
		CreatedAt:    now,
	}
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Usable reports whether the session can mint new access tokens.
func (s *Session) Usable(now time.Time) bool {
	return s.Active && !s.Expired(now)
}
