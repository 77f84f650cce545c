package models

import (
	"regexp"
	"strings"
	"time"
)

// UserStatus is the presence status a user exposes to others.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusAway    UserStatus = "away"
	UserStatusBusy    UserStatus = "busy"
)

// ValidPresenceStatus reports whether s may be set explicitly. Offline is
// only ever derived from the connection count, never set by the user.
func ValidPresenceStatus(s UserStatus) bool {
	switch s {
	case UserStatusOnline, UserStatusAway, UserStatusBusy:
		return true
	}
	return false
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

// ValidUsername reports whether name is 3-50 chars of [A-Za-z0-9_].
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name)
}

// User is a registered account. PasswordHash never leaves the process.
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	DisplayName    string     `json:"display_name,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Status         UserStatus `json:"status"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	HideReadStatus bool       `json:"hide_read_status"`
	Active         bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewUser(id, username, email, passwordHash string) *User {
	return &User{
		ID:           id,
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Status:       UserStatusOffline,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
}
