package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ltessier/courier/internal/domain/models"
)

const DefaultPresenceTTL = 60 * time.Second

const (
	presenceFieldStatus      = "status"
	presenceFieldConnections = "connections"
	presenceFieldHeartbeat   = "heartbeat"
	presenceFieldLastSeen    = "last_seen"

	presenceIndexKey = "presence:online"
)

// PresenceStore implements ports.PresenceStore. One hash per user holds
// the live state; an index set makes the stale sweep cheap. The hash TTL
// doubles as a dead-instance guard: if every heartbeat stops, the entry
// evaporates on its own.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

func (s *PresenceStore) AddConnection(ctx context.Context, userID string) (int, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	key := presenceKey(userID)
	now := time.Now().UTC()

	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, presenceFieldConnections, 1)
	pipe.HSet(ctx, key, presenceFieldHeartbeat, now.Unix())
	pipe.HSetNX(ctx, key, presenceFieldStatus, string(models.UserStatusOnline))
	pipe.Expire(ctx, key, s.ttl)
	pipe.SAdd(ctx, presenceIndexKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to add connection: %w", err)
	}
	return int(incr.Val()), nil
}

func (s *PresenceStore) RemoveConnection(ctx context.Context, userID string) (int, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	key := presenceKey(userID)

	count, err := s.client.HIncrBy(ctx, key, presenceFieldConnections, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to remove connection: %w", err)
	}
	if count > 0 {
		return int(count), nil
	}

	// Last connection gone: clamp, record last seen, drop from the index.
	now := time.Now().UTC()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		presenceFieldConnections, 0,
		presenceFieldStatus, string(models.UserStatusOffline),
		presenceFieldLastSeen, now.Unix(),
	)
	pipe.Expire(ctx, key, s.ttl)
	pipe.SRem(ctx, presenceIndexKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear connection state: %w", err)
	}
	return 0, nil
}

func (s *PresenceStore) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	key := presenceKey(userID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, presenceFieldStatus, string(status))
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *PresenceStore) Get(ctx context.Context, userID string) (*models.Presence, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	return presenceFromFields(userID, fields), nil
}

func (s *PresenceStore) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Presence, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	result := make(map[string]*models.Presence, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.HGetAll(ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read presence batch: %w", err)
	}

	for id, cmd := range cmds {
		result[id] = presenceFromFields(id, cmd.Val())
	}
	return result, nil
}

func (s *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	key := presenceKey(userID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, presenceFieldHeartbeat, time.Now().UTC().Unix())
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Stale returns users still indexed as online whose last heartbeat is
// older than cutoff.
func (s *PresenceStore) Stale(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.client.SMembers(ctx, presenceIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}

	var stale []string
	for _, id := range ids {
		raw, err := s.client.HGet(ctx, presenceKey(id), presenceFieldHeartbeat).Result()
		if errors.Is(err, redis.Nil) {
			// Hash expired under the index entry.
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || time.Unix(ts, 0).Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

func (s *PresenceStore) Clear(ctx context.Context, userID string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, presenceKey(userID))
	pipe.SRem(ctx, presenceIndexKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

func presenceFromFields(userID string, fields map[string]string) *models.Presence {
	p := &models.Presence{UserID: userID, Status: models.UserStatusOffline}
	if len(fields) == 0 {
		return p
	}

	if v, ok := fields[presenceFieldStatus]; ok {
		p.Status = models.UserStatus(v)
	}
	if v, ok := fields[presenceFieldConnections]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.ConnectionCount = n
		}
	}
	if v, ok := fields[presenceFieldHeartbeat]; ok {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.LastHeartbeat = time.Unix(ts, 0).UTC()
		}
	}
	if v, ok := fields[presenceFieldLastSeen]; ok {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(ts, 0).UTC()
			p.LastSeenAt = &t
		}
	}
	return p
}
