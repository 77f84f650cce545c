package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ltessier/courier/internal/domain/models"
)

const (
	// RecentPageSize is how many messages the cached first page holds.
	RecentPageSize = 50

	DefaultRecentTTL   = 5 * time.Minute
	DefaultUnreadTTL   = time.Hour
	DefaultDeliveryTTL = 24 * time.Hour
)

// MessageCache implements ports.MessageCache on Redis. The recent page is
// one JSON document per conversation, unread counters are plain keys,
// delivery states one hash per message. Everything here is best-effort;
// the store stays authoritative.
type MessageCache struct {
	client      *redis.Client
	recentTTL   time.Duration
	unreadTTL   time.Duration
	deliveryTTL time.Duration
}

func NewMessageCache(client *redis.Client, recentTTL, unreadTTL, deliveryTTL time.Duration) *MessageCache {
	if recentTTL <= 0 {
		recentTTL = DefaultRecentTTL
	}
	if unreadTTL <= 0 {
		unreadTTL = DefaultUnreadTTL
	}
	if deliveryTTL <= 0 {
		deliveryTTL = DefaultDeliveryTTL
	}
	return &MessageCache{
		client:      client,
		recentTTL:   recentTTL,
		unreadTTL:   unreadTTL,
		deliveryTTL: deliveryTTL,
	}
}

func recentKey(conversationID string) string {
	return "conversation:" + conversationID + ":messages:recent"
}

func unreadKey(conversationID, userID string) string {
	return "conversation:" + conversationID + ":unread:" + userID
}

func unreadTotalKey(userID string) string {
	return "user:" + userID + ":unread:total"
}

func deliveryKey(messageID string) string {
	return "message:" + messageID + ":status"
}

// recentPage is the cached first history page, newest first. HasMore
// records whether the store held more history when the page was built,
// so a cache hit can still hand out a continuation cursor.
type recentPage struct {
	Messages []*models.Message `json:"messages"`
	HasMore  bool              `json:"hasMore"`
}

// GetRecent returns the cached first page newest-first and whether more
// history exists past it, or (nil, false, nil) on a miss.
func (c *MessageCache) GetRecent(ctx context.Context, conversationID string) ([]*models.Message, bool, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	raw, err := c.client.Get(ctx, recentKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read recent cache: %w", err)
	}

	var page recentPage
	if err := json.Unmarshal(raw, &page); err != nil {
		// A corrupt document is a miss; the next read repopulates.
		return nil, false, nil
	}
	if page.Messages == nil {
		page.Messages = []*models.Message{}
	}
	return page.Messages, page.HasMore, nil
}

func (c *MessageCache) SetRecent(ctx context.Context, conversationID string, messages []*models.Message, hasMore bool) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if len(messages) > RecentPageSize {
		messages = messages[:RecentPageSize]
		hasMore = true
	}
	data, err := json.Marshal(recentPage{Messages: messages, HasMore: hasMore})
	if err != nil {
		return fmt.Errorf("failed to marshal recent page: %w", err)
	}
	return c.client.Set(ctx, recentKey(conversationID), data, c.recentTTL).Err()
}

func (c *MessageCache) InvalidateRecent(ctx context.Context, conversationID string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return c.client.Del(ctx, recentKey(conversationID)).Err()
}

func (c *MessageCache) IncrUnread(ctx context.Context, userID, conversationID string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, unreadKey(conversationID, userID))
	pipe.Expire(ctx, unreadKey(conversationID, userID), c.unreadTTL)
	pipe.Incr(ctx, unreadTotalKey(userID))
	pipe.Expire(ctx, unreadTotalKey(userID), c.unreadTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ResetUnread zeroes the conversation counter and pulls the pending amount
// off the aggregate, clamping at zero.
func (c *MessageCache) ResetUnread(ctx context.Context, userID, conversationID string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	pending, err := c.client.GetDel(ctx, unreadKey(conversationID, userID)).Int64()
	if errors.Is(err, redis.Nil) || pending <= 0 {
		return nil
	}
	if err != nil {
		return err
	}

	total, err := c.client.DecrBy(ctx, unreadTotalKey(userID), pending).Result()
	if err != nil {
		return err
	}
	if total < 0 {
		return c.client.Set(ctx, unreadTotalKey(userID), 0, c.unreadTTL).Err()
	}
	return nil
}

// GetUnread reads the counters for the given conversations. Conversations
// with no cached counter are reported in missing so the caller can repair
// them from the store.
func (c *MessageCache) GetUnread(ctx context.Context, userID string, conversationIDs []string) (int64, map[string]int64, []string, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	byConversation := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return 0, byConversation, nil, nil
	}

	pipe := c.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(conversationIDs))
	for _, id := range conversationIDs {
		cmds[id] = pipe.Get(ctx, unreadKey(id, userID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, nil, nil, fmt.Errorf("failed to read unread counters: %w", err)
	}

	var total int64
	var missing []string
	for id, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return 0, nil, nil, err
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			n = 0
		}
		byConversation[id] = n
		total += n
	}
	return total, byConversation, missing, nil
}

func (c *MessageCache) SetUnread(ctx context.Context, userID, conversationID string, count int64) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if count < 0 {
		count = 0
	}
	return c.client.Set(ctx, unreadKey(conversationID, userID), count, c.unreadTTL).Err()
}

func (c *MessageCache) SetDeliveryStatus(ctx context.Context, messageID, userID string, state models.DeliveryState) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, deliveryKey(messageID), userID, string(state))
	pipe.Expire(ctx, deliveryKey(messageID), c.deliveryTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *MessageCache) GetDeliveryStatus(ctx context.Context, messageID string) (map[string]models.DeliveryState, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	fields, err := c.client.HGetAll(ctx, deliveryKey(messageID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read delivery status: %w", err)
	}

	states := make(map[string]models.DeliveryState, len(fields))
	for userID, raw := range fields {
		states[userID] = models.DeliveryState(raw)
	}
	return states, nil
}
