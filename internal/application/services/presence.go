package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ltessier/courier/internal/adapters/metrics"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

const (
	// statusChangeInterval throttles explicit status changes per user.
	statusChangeInterval = 5 * time.Second

	// sweepInterval is how often stale presence entries are reaped.
	sweepInterval = 5 * time.Minute

	// contactCacheTTL bounds how long a broadcast fan-out list is reused.
	contactCacheTTL = 5 * time.Minute

	// presenceTTL mirrors the store-side entry TTL; heartbeats older than
	// this mark the user stale.
	presenceTTL = 60 * time.Second
)

// PresenceService tracks live status in the shared cache and broadcasts
// transitions to mutual contacts. The cache is authoritative for live
// status; users.status in the store is advisory.
type PresenceService struct {
	store    ports.PresenceStore
	contacts ports.ContactRepository
	users    ports.UserRepository
	bus      ports.EventBus

	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	contactCache map[string]contactsEntry
}

type contactsEntry struct {
	ids     []string
	fetched time.Time
}

func NewPresenceService(
	store ports.PresenceStore,
	contacts ports.ContactRepository,
	users ports.UserRepository,
	bus ports.EventBus,
) *PresenceService {
	return &PresenceService{
		store:        store,
		contacts:     contacts,
		users:        users,
		bus:          bus,
		limiters:     make(map[string]*rate.Limiter),
		contactCache: make(map[string]contactsEntry),
	}
}

// Connect registers a new device connection. The first connection flips
// the user online and broadcasts the transition. A custom status still
// live in the store survives a reconnect, so the broadcast carries the
// effective status rather than a hardcoded online.
func (s *PresenceService) Connect(ctx context.Context, userID string) error {
	count, err := s.store.AddConnection(ctx, userID)
	if err != nil {
		return errs.Cache(err)
	}
	if count == 1 {
		status := models.UserStatusOnline
		if p, err := s.store.Get(ctx, userID); err == nil && models.ValidPresenceStatus(p.Status) {
			status = p.Status
		}
		s.broadcast(ctx, userID, status, nil)
	}
	return nil
}

// Disconnect unregisters a device connection. The last connection flips
// the user offline, records last-seen durably, and broadcasts.
func (s *PresenceService) Disconnect(ctx context.Context, userID string) error {
	count, err := s.store.RemoveConnection(ctx, userID)
	if err != nil {
		return errs.Cache(err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	if err := s.users.UpdateStatus(ctx, userID, models.UserStatusOffline, &now); err != nil {
		slog.Warn("last-seen update failed", "user_id", userID, "error", err)
	}
	s.broadcast(ctx, userID, models.UserStatusOffline, &now)
	return nil
}

// SetStatus applies an explicit status change. Offline cannot be set
// directly; it is derived from the connection count. Changes are limited
// to one per five seconds per user.
func (s *PresenceService) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if !models.ValidPresenceStatus(status) {
		return errs.Validation("status must be online, away, or busy")
	}
	if !s.limiter(userID).Allow() {
		return errs.RateLimited(statusChangeInterval.Milliseconds())
	}

	if err := s.store.SetStatus(ctx, userID, status); err != nil {
		return errs.Cache(err)
	}
	if err := s.users.UpdateStatus(ctx, userID, status, nil); err != nil {
		slog.Warn("advisory status update failed", "user_id", userID, "error", err)
	}
	s.broadcast(ctx, userID, status, nil)
	return nil
}

// Heartbeat refreshes the presence TTL for a connected user.
func (s *PresenceService) Heartbeat(ctx context.Context, userID string) error {
	if err := s.store.Heartbeat(ctx, userID); err != nil {
		return errs.Cache(err)
	}
	return nil
}

// Get resolves one user's effective presence.
func (s *PresenceService) Get(ctx context.Context, userID string) (*models.Presence, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, errs.Cache(err)
	}
	p.Status = p.EffectiveStatus()
	return p, nil
}

// GetMany resolves presence for a set of users in one round trip.
func (s *PresenceService) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Presence, error) {
	presences, err := s.store.GetMany(ctx, userIDs)
	if err != nil {
		return nil, errs.Cache(err)
	}
	for _, p := range presences {
		p.Status = p.EffectiveStatus()
	}
	return presences, nil
}

// RunSweeper periodically transitions users with expired heartbeats to
// offline. Runs until ctx is cancelled.
func (s *PresenceService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *PresenceService) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-presenceTTL)
	stale, err := s.store.Stale(ctx, cutoff)
	if err != nil {
		slog.Warn("presence sweep failed", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, userID := range stale {
		if err := s.store.Clear(ctx, userID); err != nil {
			slog.Warn("presence clear failed", "user_id", userID, "error", err)
			continue
		}
		if err := s.users.UpdateStatus(ctx, userID, models.UserStatusOffline, &now); err != nil {
			slog.Warn("last-seen update failed", "user_id", userID, "error", err)
		}
		s.broadcast(ctx, userID, models.UserStatusOffline, &now)
		metrics.PresenceSweeps.Inc()
	}
}

// broadcast pushes a presence transition to every mutual contact's
// personal room. Failures are logged; presence is best-effort.
func (s *PresenceService) broadcast(ctx context.Context, userID string, status models.UserStatus, lastSeen *time.Time) {
	contactIDs, err := s.mutualContacts(ctx, userID)
	if err != nil {
		slog.Warn("presence broadcast skipped, contact lookup failed", "user_id", userID, "error", err)
		return
	}

	payload := &protocol.PresenceUpdate{
		UserID:   userID,
		Status:   string(status),
		LastSeen: lastSeen,
	}
	for _, contactID := range contactIDs {
		if err := s.bus.Publish(ctx, realtime.PersonalRoom(contactID), protocol.TypePresenceUpdate, payload); err != nil {
			slog.Warn("presence broadcast failed", "contact_id", contactID, "error", err)
		}
	}
}

// mutualContacts memoizes the fan-out list briefly; connect/disconnect
// storms should not hammer the store.
func (s *PresenceService) mutualContacts(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	entry, ok := s.contactCache[userID]
	s.mu.Unlock()
	if ok && time.Since(entry.fetched) < contactCacheTTL {
		return entry.ids, nil
	}

	ids, err := s.contacts.ListMutualContactIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.contactCache[userID] = contactsEntry{ids: ids, fetched: time.Now()}
	s.mu.Unlock()
	return ids, nil
}

func (s *PresenceService) limiter(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(statusChangeInterval), 1)
		s.limiters[userID] = l
	}
	return l
}
