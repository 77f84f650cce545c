package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
)

type retrievalEnv struct {
	messages      *mockMessageRepo
	conversations *mockConversationRepo
	participants  *mockParticipantRepo
	cache         *mockMessageCache
	svc           *RetrievalService
}

func newRetrievalEnv() *retrievalEnv {
	participants := newMockParticipantRepo()
	env := &retrievalEnv{
		messages:      newMockMessageRepo(),
		conversations: newMockConversationRepo(participants),
		participants:  participants,
		cache:         newMockMessageCache(),
	}
	env.svc = NewRetrievalService(env.messages, env.conversations, env.participants, env.cache)
	return env
}

func (env *retrievalEnv) join(conversationID, userID string) *models.Participant {
	if _, err := env.conversations.GetByID(context.Background(), conversationID); err != nil {
		env.conversations.Create(context.Background(), models.NewGroupConversation(conversationID, "test group", userID))
	}
	p := models.NewParticipant(conversationID, userID, false)
	env.participants.Add(context.Background(), p)
	return p
}

// seedMessages creates n messages with strictly increasing timestamps.
func (env *retrievalEnv) seedMessages(conversationID string, n int) []*models.Message {
	base := time.Now().UTC().Add(-time.Hour)
	out := make([]*models.Message, n)
	for i := 0; i < n; i++ {
		msg := models.NewMessage(fmt.Sprintf("msg_%s_%03d", conversationID, i), conversationID, "usr_sender", fmt.Sprintf("message %d", i), "")
		msg.CreatedAt = base.Add(time.Duration(i) * time.Second)
		msg.UpdatedAt = msg.CreatedAt
		env.messages.Create(context.Background(), msg)
		out[i] = msg
	}
	return out
}

func TestRetrievalService_History_CacheHit(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	seeded := env.seedMessages("cv_1", 3)

	// Prime the cache newest-first with more than a page.
	env.cache.SetRecent(context.Background(), "cv_1", []*models.Message{seeded[2], seeded[1], seeded[0]}, false)
	env.messages.listRecentCalls = 0
	env.cache.setRecent = 0

	page, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page.Messages))
	}
	if page.Messages[0].ID != seeded[2].ID {
		t.Errorf("expected newest first, got %s", page.Messages[0].ID)
	}
	if !page.HasMore || page.NextCursor == "" {
		t.Error("expected hasMore with a cursor")
	}
	if env.messages.listRecentCalls != 0 {
		t.Error("cache hit must not touch the store")
	}
	if !page.Cached {
		t.Error("cache hit must be reported as cached")
	}
}

func TestRetrievalService_History_CacheMissRepopulates(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	env.seedMessages("cv_1", 3)

	page, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page.Messages))
	}
	if env.messages.listRecentCalls != 1 {
		t.Errorf("expected 1 store read, got %d", env.messages.listRecentCalls)
	}
	if env.cache.setRecent != 1 {
		t.Error("first page must repopulate the cache on a miss")
	}
	if page.Cached {
		t.Error("store-served page must not be reported as cached")
	}
}

func TestRetrievalService_History_CacheHitKeepsCursor(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	env.seedMessages("cv_1", 5)

	// The miss populates the cache with a full page and the fact that
	// more history exists behind it.
	first, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 2, false)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if !first.HasMore || first.NextCursor == "" {
		t.Fatal("expected a continuation after the first read")
	}

	env.messages.listRecentCalls = 0
	second, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 2, false)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !second.Cached {
		t.Fatal("second read should be served from cache")
	}
	if env.messages.listRecentCalls != 0 {
		t.Error("cache hit must not touch the store")
	}

	// A cached page must still let the client page past it.
	if !second.HasMore || second.NextCursor == "" {
		t.Fatal("cached page lost its continuation cursor")
	}
	deeper, err := env.svc.History(context.Background(), "usr_bob", "cv_1", second.NextCursor, 2, false)
	if err != nil {
		t.Fatalf("deeper page: %v", err)
	}
	if len(deeper.Messages) == 0 {
		t.Error("continuation cursor from a cached page returned nothing")
	}
}

func TestRetrievalService_History_CacheHitExhaustedConversation(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	env.seedMessages("cv_1", 3)

	// Populate: the whole conversation fits in one page.
	if _, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 10, false); err != nil {
		t.Fatalf("first read: %v", err)
	}

	env.messages.listRecentCalls = 0
	page, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 10, false)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !page.Cached || env.messages.listRecentCalls != 0 {
		t.Fatal("short but complete page should be served from cache")
	}
	if page.HasMore || page.NextCursor != "" {
		t.Error("exhausted conversation must not advertise more pages")
	}
}

func TestRetrievalService_History_CursorPaging(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	seeded := env.seedMessages("cv_1", 5)

	first, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 2, false)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if !first.HasMore {
		t.Fatal("expected more pages")
	}

	env.cache.setRecent = 0
	second, err := env.svc.History(context.Background(), "usr_bob", "cv_1", first.NextCursor, 2, false)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(second.Messages))
	}
	if second.Messages[0].ID != seeded[2].ID {
		t.Errorf("second page starts at %s, want %s", second.Messages[0].ID, seeded[2].ID)
	}
	if env.cache.setRecent != 0 {
		t.Error("deeper pages must not overwrite the first-page cache")
	}
}

func TestRetrievalService_History_IncludeDeleted(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	seeded := env.seedMessages("cv_1", 3)
	env.messages.SoftDelete(context.Background(), seeded[1].ID, time.Now().UTC())

	// Default listing drops the deleted message.
	page, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "", 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("expected 2 live messages, got %d", len(page.Messages))
	}

	env.cache.setRecent = 0
	page, err = env.svc.History(context.Background(), "usr_bob", "cv_1", "", 10, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Messages) != 3 {
		t.Fatalf("expected 3 messages with deleted, got %d", len(page.Messages))
	}
	if !page.Messages[1].IsDeleted() {
		t.Error("deleted message missing from the page")
	}
	if env.cache.setRecent != 0 {
		t.Error("includeDeleted pages must not overwrite the cache")
	}
}

func TestRetrievalService_History_MalformedCursor(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")

	_, err := env.svc.History(context.Background(), "usr_bob", "cv_1", "%%%not-a-cursor%%%", 10, false)
	if errs.CodeOf(err) != errs.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRetrievalService_History_NotParticipant(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")

	_, err := env.svc.History(context.Background(), "usr_eve", "cv_1", "", 10, false)
	if errs.CodeOf(err) != errs.CodeNotParticipant {
		t.Fatalf("expected NOT_PARTICIPANT, got %v", err)
	}
}

func TestRetrievalService_History_ConversationNotFound(t *testing.T) {
	env := newRetrievalEnv()

	_, err := env.svc.History(context.Background(), "usr_eve", "cv_ghost", "", 10, false)
	if errs.CodeOf(err) != errs.CodeConversationNotFound {
		t.Fatalf("expected CONVERSATION_NOT_FOUND, got %v", err)
	}
}

func TestRetrievalService_Unread_LazyRepair(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	env.join("cv_2", "usr_bob")
	env.seedMessages("cv_2", 2)

	env.cache.SetUnread(context.Background(), "usr_bob", "cv_1", 3)
	env.cache.setUnread = 0

	summary, err := env.svc.Unread(context.Background(), "usr_bob", []string{"cv_1", "cv_2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ByConversation["cv_1"] != 3 {
		t.Errorf("cv_1 = %d, want cached 3", summary.ByConversation["cv_1"])
	}
	if summary.ByConversation["cv_2"] != 2 {
		t.Errorf("cv_2 = %d, want recounted 2", summary.ByConversation["cv_2"])
	}
	if summary.TotalUnread != 5 {
		t.Errorf("total = %d, want 5", summary.TotalUnread)
	}
	if env.cache.setUnread != 1 {
		t.Error("repaired counter not written back to cache")
	}
}

func TestRetrievalService_Unread_RespectsLastRead(t *testing.T) {
	env := newRetrievalEnv()
	p := env.join("cv_1", "usr_bob")
	seeded := env.seedMessages("cv_1", 4)

	// Bob has read the first two.
	p.LastReadAt = &seeded[1].CreatedAt

	summary, err := env.svc.Unread(context.Background(), "usr_bob", []string{"cv_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ByConversation["cv_1"] != 2 {
		t.Errorf("cv_1 = %d, want 2", summary.ByConversation["cv_1"])
	}
}

func TestRetrievalService_Unread_DefaultsToMemberConversations(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	env.join("cv_2", "usr_bob")
	env.join("cv_other", "usr_carol")
	env.seedMessages("cv_1", 2)
	env.seedMessages("cv_2", 3)
	env.seedMessages("cv_other", 4)

	// No explicit scope: the summary covers the caller's own
	// conversations, not an empty set.
	summary, err := env.svc.Unread(context.Background(), "usr_bob", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ByConversation["cv_1"] != 2 || summary.ByConversation["cv_2"] != 3 {
		t.Errorf("byConversation = %v, want cv_1=2 cv_2=3", summary.ByConversation)
	}
	if summary.TotalUnread != 5 {
		t.Errorf("total = %d, want 5", summary.TotalUnread)
	}
	if _, ok := summary.ByConversation["cv_other"]; ok {
		t.Error("summary leaked a conversation the caller is not in")
	}
}

func TestRetrievalService_Unread_RepairExcludesOwnMessages(t *testing.T) {
	env := newRetrievalEnv()
	env.join("cv_1", "usr_bob")
	env.seedMessages("cv_1", 2)

	// Bob's own message must never count toward his unread.
	own := models.NewMessage("msg_cv_1_own", "cv_1", "usr_bob", "mine", "")
	env.messages.Create(context.Background(), own)

	summary, err := env.svc.Unread(context.Background(), "usr_bob", []string{"cv_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ByConversation["cv_1"] != 2 {
		t.Errorf("cv_1 = %d, want 2", summary.ByConversation["cv_1"])
	}
}

func TestRetrievalService_Unread_NotParticipant(t *testing.T) {
	env := newRetrievalEnv()

	_, err := env.svc.Unread(context.Background(), "usr_eve", []string{"cv_1"})
	if errs.CodeOf(err) != errs.CodeNotParticipant {
		t.Fatalf("expected NOT_PARTICIPANT, got %v", err)
	}
}

func TestRetrievalService_Search(t *testing.T) {
	env := newRetrievalEnv()
	env.seedMessages("cv_1", 3)

	result, err := env.svc.Search(context.Background(), "usr_bob", "message 1", "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 1 || len(result.Messages) != 1 {
		t.Fatalf("expected exactly one hit, got total=%d len=%d", result.Total, len(result.Messages))
	}
}

func TestRetrievalService_Search_ScopedToConversation(t *testing.T) {
	env := newRetrievalEnv()
	env.seedMessages("cv_1", 3)
	env.seedMessages("cv_2", 3)

	result, err := env.svc.Search(context.Background(), "usr_bob", "message", "cv_2", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d, want 3", result.Total)
	}
	for _, msg := range result.Messages {
		if msg.ConversationID != "cv_2" {
			t.Errorf("hit from %s leaked into scoped search", msg.ConversationID)
		}
	}
}

func TestRetrievalService_Search_EmptyQuery(t *testing.T) {
	env := newRetrievalEnv()

	_, err := env.svc.Search(context.Background(), "usr_bob", "", "", 10, 0)
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
