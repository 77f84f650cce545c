package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ltessier/courier/internal/adapters/metrics"
	"github.com/ltessier/courier/internal/cursor"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
)

const (
	// HistoryPageSize is the default and maximum page size for history.
	HistoryPageSize = 50

	// searchTimeout bounds full-text queries; overruns surface as TIMEOUT.
	searchTimeout = 30 * time.Second

	// unreadConversationCap bounds the default unread summary scope.
	unreadConversationCap = 100
)

// RetrievalService serves message history, unread aggregation and search.
// The first history page goes through the cache-aside layer; deeper pages
// hit the store directly.
type RetrievalService struct {
	messages      ports.MessageRepository
	conversations ports.ConversationRepository
	participants  ports.ParticipantRepository
	cache         ports.MessageCache
}

func NewRetrievalService(
	messages ports.MessageRepository,
	conversations ports.ConversationRepository,
	participants ports.ParticipantRepository,
	cache ports.MessageCache,
) *RetrievalService {
	return &RetrievalService{
		messages:      messages,
		conversations: conversations,
		participants:  participants,
		cache:         cache,
	}
}

// HistoryPage is one page of history, newest first, with the cursor for
// the next page when more exist. Cached reports whether the page was
// served from the recent-messages cache.
type HistoryPage struct {
	Messages   []*models.Message
	NextCursor string
	HasMore    bool
	Cached     bool
}

// History returns a conversation page. An empty cursor requests the first
// page, which is answered from cache when possible and repopulated
// synchronously on a miss. includeDeleted keeps soft-deleted messages in
// the page; such requests bypass the cache, which holds live rows only.
func (s *RetrievalService) History(ctx context.Context, userID, conversationID, pageCursor string, limit int, includeDeleted bool) (*HistoryPage, error) {
	if _, err := s.participants.GetActive(ctx, conversationID, userID); err != nil {
		if _, convErr := s.conversations.GetByID(ctx, conversationID); convErr != nil {
			return nil, errs.ConversationNotFound()
		}
		return nil, errs.NotParticipant()
	}
	if limit <= 0 || limit > HistoryPageSize {
		limit = HistoryPageSize
	}

	var before time.Time
	var beforeID string
	if pageCursor != "" {
		var err error
		before, beforeID, err = cursor.Decode(pageCursor)
		if err != nil {
			return nil, errs.InvalidInput("malformed cursor")
		}
	}

	firstPage := pageCursor == "" && !includeDeleted
	if firstPage {
		cached, cachedMore, err := s.cache.GetRecent(ctx, conversationID)
		switch {
		case err != nil:
			slog.Warn("recent cache read failed", "conversation_id", conversationID, "error", err)
		case cached != nil && (len(cached) >= limit || !cachedMore):
			// The page either fills the requested limit or is the whole
			// conversation; anything shorter with more history must go
			// to the store.
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return cachedPage(cached, cachedMore, limit), nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	page, err := s.messages.ListRecent(ctx, conversationID, before, beforeID, limit, includeDeleted)
	if err != nil {
		return nil, errs.Database(err)
	}

	if firstPage {
		if err := s.cache.SetRecent(ctx, conversationID, page.Messages, page.HasMore); err != nil {
			slog.Warn("recent cache populate failed", "conversation_id", conversationID, "error", err)
		}
	}

	result := &HistoryPage{Messages: page.Messages, HasMore: page.HasMore}
	if page.HasMore && len(page.Messages) > 0 {
		last := page.Messages[len(page.Messages)-1]
		result.NextCursor = cursor.Encode(last.CreatedAt, last.ID)
	}
	return result, nil
}

// cachedPage trims the cached page to the requested limit. Trimming
// proves more messages exist even when the cached page was the tail.
func cachedPage(messages []*models.Message, hasMore bool, limit int) *HistoryPage {
	if len(messages) > limit {
		messages = messages[:limit]
		hasMore = true
	}
	page := &HistoryPage{Messages: messages, HasMore: hasMore, Cached: true}
	if hasMore && len(messages) > 0 {
		last := messages[len(messages)-1]
		page.NextCursor = cursor.Encode(last.CreatedAt, last.ID)
	}
	return page
}

// UnreadSummary aggregates unread counts across the user's conversations.
type UnreadSummary struct {
	TotalUnread    int64            `json:"totalUnread"`
	ByConversation map[string]int64 `json:"byConversation"`
}

// Unread reads the counters from cache and lazily repairs misses from the
// store using each participant row's last_read_at. When no conversations
// are named, the summary covers the caller's most recently active
// conversations, capped at unreadConversationCap.
func (s *RetrievalService) Unread(ctx context.Context, userID string, conversationIDs []string) (*UnreadSummary, error) {
	if len(conversationIDs) == 0 {
		conversations, _, err := s.conversations.ListByUserID(ctx, userID, unreadConversationCap, 0)
		if err != nil {
			return nil, errs.Database(err)
		}
		conversationIDs = make([]string, 0, len(conversations))
		for _, c := range conversations {
			conversationIDs = append(conversationIDs, c.ID)
		}
	}

	total, byConversation, missing, err := s.cache.GetUnread(ctx, userID, conversationIDs)
	if err != nil {
		slog.Warn("unread cache read failed, recomputing", "user_id", userID, "error", err)
		byConversation = make(map[string]int64, len(conversationIDs))
		missing = conversationIDs
		total = 0
	}

	for _, conversationID := range missing {
		count, err := s.recountUnread(ctx, userID, conversationID)
		if err != nil {
			return nil, err
		}
		byConversation[conversationID] = count
		total += count
		if err := s.cache.SetUnread(ctx, userID, conversationID, count); err != nil {
			slog.Warn("unread cache repair failed", "conversation_id", conversationID, "error", err)
		}
	}

	return &UnreadSummary{TotalUnread: total, ByConversation: byConversation}, nil
}

func (s *RetrievalService) recountUnread(ctx context.Context, userID, conversationID string) (int64, error) {
	participant, err := s.participants.GetActive(ctx, conversationID, userID)
	if err != nil {
		return 0, errs.NotParticipant()
	}

	since := time.Time{}
	if participant.LastReadAt != nil {
		since = *participant.LastReadAt
	}
	count, err := s.messages.CountSince(ctx, conversationID, userID, since)
	if err != nil {
		return 0, errs.Database(err)
	}
	return int64(count), nil
}

// SearchResult is a page of full-text matches with the total hit count.
type SearchResult struct {
	Messages []*models.Message
	Total    int
}

// Search runs a full-text query scoped to the caller's conversations,
// narrowed to one conversation when conversationID is non-empty.
// Deadline overruns surface as TIMEOUT rather than an empty result.
func (s *RetrievalService) Search(ctx context.Context, userID, query, conversationID string, limit, offset int) (*SearchResult, error) {
	if query == "" {
		return nil, errs.Validation("search query is required")
	}
	if limit <= 0 || limit > HistoryPageSize {
		limit = HistoryPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	messages, total, err := s.messages.Search(ctx, userID, query, conversationID, limit, offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Timeout("search timed out")
		}
		return nil, errs.Database(err)
	}
	return &SearchResult{Messages: messages, Total: total}, nil
}
