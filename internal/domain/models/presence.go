package models

import "time"

// Presence is the cache-resident live state for a user. The durable
// users.status column is advisory and may lag behind this record.
type Presence struct {
	UserID          string     `json:"user_id"`
	Status          UserStatus `json:"status"`
	ConnectionCount int        `json:"connection_count"`
	LastHeartbeat   time.Time  `json:"last_heartbeat"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
}

// EffectiveStatus resolves the invariant: offline iff no connections,
// otherwise the explicitly set status (default online).
func (p *Presence) EffectiveStatus() UserStatus {
	if p == nil || p.ConnectionCount <= 0 {
		return UserStatusOffline
	}
	if p.Status == "" || p.Status == UserStatusOffline {
		return UserStatusOnline
	}
	return p.Status
}
