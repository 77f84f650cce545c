package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
)

// Shared mock implementations for testing

var errNotFound = errors.New("not found")

type mockIDGenerator struct {
	userCounter         int
	conversationCounter int
	messageCounter      int
	sessionCounter      int
	contactCounter      int
}

func (m *mockIDGenerator) UserID() string {
	m.userCounter++
	return fmt.Sprintf("usr_test%d", m.userCounter)
}

func (m *mockIDGenerator) ConversationID() string {
	m.conversationCounter++
	return fmt.Sprintf("cv_test%d", m.conversationCounter)
}

func (m *mockIDGenerator) MessageID() string {
	m.messageCounter++
	return fmt.Sprintf("msg_test%d", m.messageCounter)
}

func (m *mockIDGenerator) SessionID() string {
	m.sessionCounter++
	return fmt.Sprintf("ses_test%d", m.sessionCounter)
}

func (m *mockIDGenerator) ContactID() string {
	m.contactCounter++
	return fmt.Sprintf("ct_test%d", m.contactCounter)
}

type mockTransactionManager struct{}

func (m *mockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Simply execute the function without actual transaction management
	return fn(ctx)
}

// mockBus records every publication in order.

type publishedEvent struct {
	Room    string
	Type    string
	Payload any
}

type mockBus struct {
	events []publishedEvent
	err    error
}

func (m *mockBus) Publish(_ context.Context, room, eventType string, payload any) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{Room: room, Type: eventType, Payload: payload})
	return nil
}

func (m *mockBus) ofType(eventType string) []publishedEvent {
	var out []publishedEvent
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type mockUserRepo struct {
	users map[string]*models.User
	// contactsOf[owner][contact] marks an existing contact row, used by
	// Search's excludeContacts filter.
	contactsOf map[string]map[string]bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:      make(map[string]*models.User),
		contactsOf: make(map[string]map[string]bool),
	}
}

func (m *mockUserRepo) markContact(ownerID, contactID string) {
	if m.contactsOf[ownerID] == nil {
		m.contactsOf[ownerID] = make(map[string]bool)
	}
	m.contactsOf[ownerID][contactID] = true
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return errNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateStatus(_ context.Context, id string, status models.UserStatus, lastSeen *time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return errNotFound
	}
	user.Status = status
	if lastSeen != nil {
		user.LastSeenAt = lastSeen
	}
	return nil
}

func (m *mockUserRepo) Search(_ context.Context, query, excludeContactsOf string, limit, offset int) ([]*models.User, int, error) {
	var matches []*models.User
	for _, u := range m.users {
		if !strings.Contains(u.Username, query) {
			continue
		}
		if excludeContactsOf != "" && m.contactsOf[excludeContactsOf][u.ID] {
			continue
		}
		matches = append(matches, u)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Username < matches[j].Username })
	total := len(matches)
	if offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

type mockSessionRepo struct {
	sessions map[string]*models.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*models.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, session *models.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByRefreshToken(_ context.Context, token string) (*models.Session, error) {
	for _, s := range m.sessions {
		if s.RefreshToken == token {
			return s, nil
		}
	}
	return nil, errNotFound
}

func (m *mockSessionRepo) Rotate(_ context.Context, id, newToken string, expiresAt time.Time) error {
	s, ok := m.sessions[id]
	if !ok {
		return errNotFound
	}
	s.RefreshToken = newToken
	s.ExpiresAt = expiresAt
	s.LastUsedAt = time.Now().UTC()
	return nil
}

func (m *mockSessionRepo) Deactivate(_ context.Context, id string) error {
	s, ok := m.sessions[id]
	if !ok {
		return errNotFound
	}
	s.Active = false
	return nil
}

func (m *mockSessionRepo) DeactivateAllForUser(_ context.Context, userID string) error {
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.Active = false
		}
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// mockConversationRepo resolves FindDirect through the participant repo,
// the way the SQL implementation joins the membership table.
type mockConversationRepo struct {
	conversations map[string]*models.Conversation
	participants  *mockParticipantRepo
}

func newMockConversationRepo(participants *mockParticipantRepo) *mockConversationRepo {
	return &mockConversationRepo{
		conversations: make(map[string]*models.Conversation),
		participants:  participants,
	}
}

func (m *mockConversationRepo) Create(_ context.Context, conversation *models.Conversation) error {
	m.conversations[conversation.ID] = conversation
	return nil
}

func (m *mockConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := m.conversations[id]
	if !ok {
		return nil, errNotFound
	}
	return c, nil
}

func (m *mockConversationRepo) FindDirect(_ context.Context, userA, userB string) (*models.Conversation, error) {
	for _, c := range m.conversations {
		if c.Type != models.ConversationDirect {
			continue
		}
		members := m.participants.activeIDs(c.ID)
		if len(members) == 2 && members[userA] && members[userB] {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockConversationRepo) Update(_ context.Context, conversation *models.Conversation) error {
	if _, ok := m.conversations[conversation.ID]; !ok {
		return errNotFound
	}
	m.conversations[conversation.ID] = conversation
	return nil
}

func (m *mockConversationRepo) Touch(_ context.Context, id string, at time.Time) error {
	c, ok := m.conversations[id]
	if !ok {
		return errNotFound
	}
	c.UpdatedAt = at
	return nil
}

func (m *mockConversationRepo) ListByUserID(_ context.Context, userID string, limit, offset int) ([]*models.Conversation, int, error) {
	var out []*models.Conversation
	for _, c := range m.conversations {
		if m.participants.activeIDs(c.ID)[userID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// mockParticipantRepo keeps insertion order per conversation so the
// promote-earliest-member rule is deterministic.
type mockParticipantRepo struct {
	rows  map[string]*models.Participant
	order map[string][]string
}

func newMockParticipantRepo() *mockParticipantRepo {
	return &mockParticipantRepo{
		rows:  make(map[string]*models.Participant),
		order: make(map[string][]string),
	}
}

func participantKey(conversationID, userID string) string {
	return conversationID + "/" + userID
}

func (m *mockParticipantRepo) activeIDs(conversationID string) map[string]bool {
	ids := make(map[string]bool)
	for _, userID := range m.order[conversationID] {
		p := m.rows[participantKey(conversationID, userID)]
		if p != nil && p.IsActive() {
			ids[userID] = true
		}
	}
	return ids
}

func (m *mockParticipantRepo) Add(_ context.Context, participant *models.Participant) error {
	key := participantKey(participant.ConversationID, participant.UserID)
	if _, ok := m.rows[key]; !ok {
		m.order[participant.ConversationID] = append(m.order[participant.ConversationID], participant.UserID)
	}
	m.rows[key] = participant
	return nil
}

func (m *mockParticipantRepo) Rejoin(_ context.Context, conversationID, userID string) error {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok {
		return errNotFound
	}
	p.LeftAt = nil
	return nil
}

func (m *mockParticipantRepo) Get(_ context.Context, conversationID, userID string) (*models.Participant, error) {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (m *mockParticipantRepo) GetActive(_ context.Context, conversationID, userID string) (*models.Participant, error) {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok || !p.IsActive() {
		return nil, errNotFound
	}
	return p, nil
}

func (m *mockParticipantRepo) ListActive(_ context.Context, conversationID string) ([]*models.Participant, error) {
	var out []*models.Participant
	for _, userID := range m.order[conversationID] {
		p := m.rows[participantKey(conversationID, userID)]
		if p != nil && p.IsActive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockParticipantRepo) ListActiveForUpdate(ctx context.Context, conversationID string) ([]*models.Participant, error) {
	return m.ListActive(ctx, conversationID)
}

func (m *mockParticipantRepo) Remove(_ context.Context, conversationID, userID string, at time.Time) error {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok {
		return errNotFound
	}
	p.LeftAt = &at
	return nil
}

func (m *mockParticipantRepo) SetAdmin(_ context.Context, conversationID, userID string, isAdmin bool) error {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok {
		return errNotFound
	}
	p.IsAdmin = isAdmin
	return nil
}

func (m *mockParticipantRepo) SetLastRead(_ context.Context, conversationID, userID string, at time.Time) error {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok {
		return errNotFound
	}
	p.LastReadAt = &at
	return nil
}

func (m *mockParticipantRepo) UpdateSettings(_ context.Context, conversationID, userID string, isMuted, isArchived *bool) error {
	p, ok := m.rows[participantKey(conversationID, userID)]
	if !ok || !p.IsActive() {
		return errNotFound
	}
	if isMuted != nil {
		p.IsMuted = *isMuted
	}
	if isArchived != nil {
		p.IsArchived = *isArchived
	}
	return nil
}

func (m *mockParticipantRepo) CountActive(_ context.Context, conversationID string) (int, error) {
	return len(m.activeIDs(conversationID)), nil
}

type mockMessageRepo struct {
	messages map[string]*models.Message
	byConv   map[string][]string

	listRecentCalls int
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{
		messages: make(map[string]*models.Message),
		byConv:   make(map[string][]string),
	}
}

func (m *mockMessageRepo) Create(_ context.Context, message *models.Message) error {
	m.messages[message.ID] = message
	m.byConv[message.ConversationID] = append(m.byConv[message.ConversationID], message.ID)
	return nil
}

func (m *mockMessageRepo) GetByID(_ context.Context, id string) (*models.Message, error) {
	msg, ok := m.messages[id]
	if !ok || msg.IsDeleted() {
		return nil, errNotFound
	}
	return msg, nil
}

func (m *mockMessageRepo) UpdateContent(_ context.Context, id, content string, at time.Time) error {
	msg, ok := m.messages[id]
	if !ok {
		return errNotFound
	}
	msg.Content = content
	msg.UpdatedAt = at
	return nil
}

func (m *mockMessageRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	msg, ok := m.messages[id]
	if !ok || msg.IsDeleted() {
		return errNotFound
	}
	msg.DeletedAt = &at
	return nil
}

func (m *mockMessageRepo) sorted(conversationID string) []*models.Message {
	var out []*models.Message
	for _, id := range m.byConv[conversationID] {
		out = append(out, m.messages[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *mockMessageRepo) ListRecent(_ context.Context, conversationID string, before time.Time, beforeID string, limit int, includeDeleted bool) (*ports.MessagePage, error) {
	m.listRecentCalls++

	var all []*models.Message
	for _, msg := range m.sorted(conversationID) {
		if includeDeleted || !msg.IsDeleted() {
			all = append(all, msg)
		}
	}
	if !before.IsZero() {
		var rest []*models.Message
		for _, msg := range all {
			if msg.CreatedAt.Before(before) || (msg.CreatedAt.Equal(before) && msg.ID < beforeID) {
				rest = append(rest, msg)
			}
		}
		all = rest
	}

	hasMore := len(all) > limit
	if hasMore {
		all = all[:limit]
	}
	return &ports.MessagePage{Messages: all, HasMore: hasMore}, nil
}

func (m *mockMessageRepo) Search(_ context.Context, userID, query, conversationID string, limit, offset int) ([]*models.Message, int, error) {
	var matches []*models.Message
	for _, msg := range m.messages {
		if conversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		if !msg.IsDeleted() && strings.Contains(msg.Content, query) {
			matches = append(matches, msg)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	total := len(matches)
	if offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

func (m *mockMessageRepo) CountSince(_ context.Context, conversationID, excludeSenderID string, since time.Time) (int, error) {
	count := 0
	for _, id := range m.byConv[conversationID] {
		msg := m.messages[id]
		if !msg.IsDeleted() && msg.SenderID != excludeSenderID && msg.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

// mockStatusRepo resolves senders through the message repo the way the
// SQL implementation joins messages.
type mockStatusRepo struct {
	rows     map[string]*models.MessageStatus
	messages *mockMessageRepo
}

func newMockStatusRepo(messages *mockMessageRepo) *mockStatusRepo {
	return &mockStatusRepo{
		rows:     make(map[string]*models.MessageStatus),
		messages: messages,
	}
}

func statusKey(messageID, userID string) string {
	return messageID + "/" + userID
}

func (m *mockStatusRepo) CreateBatch(_ context.Context, messageID string, userIDs []string) error {
	for _, userID := range userIDs {
		m.rows[statusKey(messageID, userID)] = &models.MessageStatus{
			MessageID: messageID,
			UserID:    userID,
			State:     models.DeliverySent,
			UpdatedAt: time.Now().UTC(),
		}
	}
	return nil
}

func (m *mockStatusRepo) Get(_ context.Context, messageID, userID string) (*models.MessageStatus, error) {
	row, ok := m.rows[statusKey(messageID, userID)]
	if !ok {
		return nil, errNotFound
	}
	return row, nil
}

func (m *mockStatusRepo) ListByMessage(_ context.Context, messageID string) ([]*models.MessageStatus, error) {
	var out []*models.MessageStatus
	for _, row := range m.rows {
		if row.MessageID == messageID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockStatusRepo) advance(row *models.MessageStatus, next models.DeliveryState) (models.StatusUpdate, bool) {
	if !row.State.CanAdvance(next) {
		return models.StatusUpdate{}, false
	}
	row.State = next
	row.UpdatedAt = time.Now().UTC()
	msg := m.messages.messages[row.MessageID]
	return models.StatusUpdate{MessageID: row.MessageID, SenderID: msg.SenderID, CreatedAt: msg.CreatedAt}, true
}

func (m *mockStatusRepo) MarkDelivered(_ context.Context, messageIDs []string, userID string) ([]models.StatusUpdate, error) {
	var updates []models.StatusUpdate
	for _, messageID := range messageIDs {
		row, ok := m.rows[statusKey(messageID, userID)]
		if !ok {
			continue
		}
		if update, ok := m.advance(row, models.DeliveryDelivered); ok {
			updates = append(updates, update)
		}
	}
	return updates, nil
}

func (m *mockStatusRepo) MarkRead(_ context.Context, conversationID, userID string, upTo time.Time) ([]models.StatusUpdate, error) {
	var updates []models.StatusUpdate
	for _, row := range m.rows {
		if row.UserID != userID {
			continue
		}
		msg := m.messages.messages[row.MessageID]
		if msg.ConversationID != conversationID || msg.CreatedAt.After(upTo) {
			continue
		}
		if update, ok := m.advance(row, models.DeliveryRead); ok {
			updates = append(updates, update)
		}
	}
	return updates, nil
}

func (m *mockStatusRepo) MarkReadByIDs(_ context.Context, messageIDs []string, userID string) ([]models.StatusUpdate, error) {
	var updates []models.StatusUpdate
	for _, messageID := range messageIDs {
		row, ok := m.rows[statusKey(messageID, userID)]
		if !ok {
			continue
		}
		if update, ok := m.advance(row, models.DeliveryRead); ok {
			updates = append(updates, update)
		}
	}
	return updates, nil
}

type mockContactRepo struct {
	contacts map[string]*models.Contact

	blockedErr error
	mutualErr  error
}

func newMockContactRepo() *mockContactRepo {
	return &mockContactRepo{contacts: make(map[string]*models.Contact)}
}

func contactPairKey(ownerID, contactID string) string {
	return ownerID + "/" + contactID
}

func (m *mockContactRepo) Add(_ context.Context, contact *models.Contact) error {
	key := contactPairKey(contact.OwnerID, contact.ContactID)
	if _, ok := m.contacts[key]; ok {
		return errors.New("duplicate contact")
	}
	m.contacts[key] = contact
	return nil
}

func (m *mockContactRepo) Get(_ context.Context, ownerID, contactID string) (*models.Contact, error) {
	c, ok := m.contacts[contactPairKey(ownerID, contactID)]
	if !ok {
		return nil, errNotFound
	}
	return c, nil
}

func (m *mockContactRepo) List(_ context.Context, ownerID string, limit, offset int) ([]*models.Contact, int, error) {
	var out []*models.Contact
	for _, c := range m.contacts {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContactID < out[j].ContactID })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockContactRepo) Update(_ context.Context, contact *models.Contact) error {
	key := contactPairKey(contact.OwnerID, contact.ContactID)
	if _, ok := m.contacts[key]; !ok {
		return errNotFound
	}
	m.contacts[key] = contact
	return nil
}

func (m *mockContactRepo) Remove(_ context.Context, ownerID, contactID string) error {
	key := contactPairKey(ownerID, contactID)
	if _, ok := m.contacts[key]; !ok {
		return errNotFound
	}
	delete(m.contacts, key)
	return nil
}

func (m *mockContactRepo) IsBlockedEither(_ context.Context, userA, userB string) (bool, error) {
	if m.blockedErr != nil {
		return false, m.blockedErr
	}
	if c, ok := m.contacts[contactPairKey(userA, userB)]; ok && c.IsBlocked {
		return true, nil
	}
	if c, ok := m.contacts[contactPairKey(userB, userA)]; ok && c.IsBlocked {
		return true, nil
	}
	return false, nil
}

func (m *mockContactRepo) ListMutualContactIDs(_ context.Context, userID string) ([]string, error) {
	if m.mutualErr != nil {
		return nil, m.mutualErr
	}
	var out []string
	for _, c := range m.contacts {
		if c.OwnerID != userID || c.IsBlocked {
			continue
		}
		back, ok := m.contacts[contactPairKey(c.ContactID, userID)]
		if ok && !back.IsBlocked {
			out = append(out, c.ContactID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type cachedRecent struct {
	messages []*models.Message
	hasMore  bool
}

type mockMessageCache struct {
	recent   map[string]cachedRecent
	unread   map[string]map[string]int64
	delivery map[string]map[string]models.DeliveryState

	invalidations int
	setRecent     int
	setUnread     int
	getUnreadErr  error
}

func newMockMessageCache() *mockMessageCache {
	return &mockMessageCache{
		recent:   make(map[string]cachedRecent),
		unread:   make(map[string]map[string]int64),
		delivery: make(map[string]map[string]models.DeliveryState),
	}
}

func (m *mockMessageCache) GetRecent(_ context.Context, conversationID string) ([]*models.Message, bool, error) {
	page, ok := m.recent[conversationID]
	if !ok {
		return nil, false, nil
	}
	if page.messages == nil {
		page.messages = []*models.Message{}
	}
	return page.messages, page.hasMore, nil
}

func (m *mockMessageCache) SetRecent(_ context.Context, conversationID string, messages []*models.Message, hasMore bool) error {
	m.setRecent++
	m.recent[conversationID] = cachedRecent{messages: messages, hasMore: hasMore}
	return nil
}

func (m *mockMessageCache) InvalidateRecent(_ context.Context, conversationID string) error {
	m.invalidations++
	delete(m.recent, conversationID)
	return nil
}

func (m *mockMessageCache) IncrUnread(_ context.Context, userID, conversationID string) error {
	if m.unread[userID] == nil {
		m.unread[userID] = make(map[string]int64)
	}
	m.unread[userID][conversationID]++
	return nil
}

func (m *mockMessageCache) ResetUnread(_ context.Context, userID, conversationID string) error {
	if m.unread[userID] != nil {
		delete(m.unread[userID], conversationID)
	}
	return nil
}

func (m *mockMessageCache) GetUnread(_ context.Context, userID string, conversationIDs []string) (int64, map[string]int64, []string, error) {
	if m.getUnreadErr != nil {
		return 0, nil, nil, m.getUnreadErr
	}
	byConversation := make(map[string]int64)
	var missing []string
	var total int64
	for _, count := range m.unread[userID] {
		total += count
	}
	for _, conversationID := range conversationIDs {
		count, ok := m.unread[userID][conversationID]
		if !ok {
			missing = append(missing, conversationID)
			continue
		}
		byConversation[conversationID] = count
	}
	return total, byConversation, missing, nil
}

func (m *mockMessageCache) SetUnread(_ context.Context, userID, conversationID string, count int64) error {
	m.setUnread++
	if m.unread[userID] == nil {
		m.unread[userID] = make(map[string]int64)
	}
	m.unread[userID][conversationID] = count
	return nil
}

func (m *mockMessageCache) SetDeliveryStatus(_ context.Context, messageID, userID string, state models.DeliveryState) error {
	if m.delivery[messageID] == nil {
		m.delivery[messageID] = make(map[string]models.DeliveryState)
	}
	m.delivery[messageID][userID] = state
	return nil
}

func (m *mockMessageCache) GetDeliveryStatus(_ context.Context, messageID string) (map[string]models.DeliveryState, error) {
	return m.delivery[messageID], nil
}

type mockPresenceStore struct {
	presences map[string]*models.Presence
}

func newMockPresenceStore() *mockPresenceStore {
	return &mockPresenceStore{presences: make(map[string]*models.Presence)}
}

func (m *mockPresenceStore) entry(userID string) *models.Presence {
	p, ok := m.presences[userID]
	if !ok {
		p = &models.Presence{UserID: userID}
		m.presences[userID] = p
	}
	return p
}

func (m *mockPresenceStore) AddConnection(_ context.Context, userID string) (int, error) {
	p := m.entry(userID)
	p.ConnectionCount++
	p.LastHeartbeat = time.Now().UTC()
	return p.ConnectionCount, nil
}

func (m *mockPresenceStore) RemoveConnection(_ context.Context, userID string) (int, error) {
	p := m.entry(userID)
	if p.ConnectionCount > 0 {
		p.ConnectionCount--
	}
	return p.ConnectionCount, nil
}

func (m *mockPresenceStore) SetStatus(_ context.Context, userID string, status models.UserStatus) error {
	m.entry(userID).Status = status
	return nil
}

func (m *mockPresenceStore) Get(_ context.Context, userID string) (*models.Presence, error) {
	p, ok := m.presences[userID]
	if !ok {
		return &models.Presence{UserID: userID}, nil
	}
	return p, nil
}

func (m *mockPresenceStore) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Presence, error) {
	out := make(map[string]*models.Presence, len(userIDs))
	for _, userID := range userIDs {
		p, _ := m.Get(ctx, userID)
		out[userID] = p
	}
	return out, nil
}

func (m *mockPresenceStore) Heartbeat(_ context.Context, userID string) error {
	m.entry(userID).LastHeartbeat = time.Now().UTC()
	return nil
}

func (m *mockPresenceStore) Stale(_ context.Context, cutoff time.Time) ([]string, error) {
	var out []string
	for userID, p := range m.presences {
		if p.ConnectionCount > 0 && p.LastHeartbeat.Before(cutoff) {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockPresenceStore) Clear(_ context.Context, userID string) error {
	delete(m.presences, userID)
	return nil
}

type mockRateLimiter struct {
	retryAfter       time.Duration
	modifyRetryAfter time.Duration

	sendCalls   int
	modifyCalls int
}

func (m *mockRateLimiter) AllowSend(_ context.Context, _ string) (time.Duration, error) {
	m.sendCalls++
	return m.retryAfter, nil
}

func (m *mockRateLimiter) AllowModify(_ context.Context, _ string) (time.Duration, error) {
	m.modifyCalls++
	return m.modifyRetryAfter, nil
}
