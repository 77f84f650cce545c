package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

// ConversationService manages conversation lifecycle and membership,
// including the at-least-one-admin guarantee for groups.
type ConversationService struct {
	tx            ports.TransactionManager
	conversations ports.ConversationRepository
	participants  ports.ParticipantRepository
	users         ports.UserRepository
	bus           ports.EventBus
	ids           ports.IDGenerator
}

func NewConversationService(
	tx ports.TransactionManager,
	conversations ports.ConversationRepository,
	participants ports.ParticipantRepository,
	users ports.UserRepository,
	bus ports.EventBus,
	ids ports.IDGenerator,
) *ConversationService {
	return &ConversationService{
		tx:            tx,
		conversations: conversations,
		participants:  participants,
		users:         users,
		bus:           bus,
		ids:           ids,
	}
}

// CreateDirectResult reports whether the conversation already existed.
type CreateDirectResult struct {
	Conversation *models.Conversation
	Created      bool
}

// CreateDirect returns the direct conversation for the pair, creating it
// if absent. Idempotent per unordered pair: concurrent calls serialize on
// an advisory lock and converge on one conversation.
func (s *ConversationService) CreateDirect(ctx context.Context, userID, otherID string) (*CreateDirectResult, error) {
	if userID == otherID {
		return nil, errs.SelfConversation()
	}
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		return nil, errs.UserNotFound()
	}

	var result CreateDirectResult
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.conversations.FindDirect(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Conversation = existing
			return nil
		}

		conversation := models.NewDirectConversation(s.ids.ConversationID(), userID)
		if err := s.conversations.Create(ctx, conversation); err != nil {
			return err
		}
		for _, id := range []string{userID, otherID} {
			if err := s.participants.Add(ctx, models.NewParticipant(conversation.ID, id, false)); err != nil {
				return err
			}
		}
		result.Conversation = conversation
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, errs.Database(err)
	}
	return &result, nil
}

// CreateGroup creates a group with the caller as admin. memberIDs must
// bring the total (creator included) to at least three.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*models.Conversation, error) {
	members := dedupe(memberIDs, creatorID)
	if len(members)+1 < models.MinGroupParticipants {
		return nil, errs.Validation("a group needs at least 3 participants")
	}
	if len(name) > models.MaxGroupNameLength {
		return nil, errs.Validation("group name too long")
	}

	usernames := make([]string, 0, len(members)+1)
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, errs.UserNotFound()
	}
	usernames = append(usernames, creator.Username)
	for _, id := range members {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, errs.UserNotFound()
		}
		usernames = append(usernames, u.Username)
	}

	if name == "" {
		name = models.SynthesizeGroupName(usernames)
	}

	conversation := models.NewGroupConversation(s.ids.ConversationID(), name, creatorID)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.conversations.Create(ctx, conversation); err != nil {
			return err
		}
		if err := s.participants.Add(ctx, models.NewParticipant(conversation.ID, creatorID, true)); err != nil {
			return err
		}
		for _, id := range members {
			if err := s.participants.Add(ctx, models.NewParticipant(conversation.ID, id, false)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Database(err)
	}
	return conversation, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	if _, err := s.participants.GetActive(ctx, conversationID, userID); err != nil {
		return nil, errs.NotParticipant()
	}
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, errs.ConversationNotFound()
	}
	return conversation, nil
}

func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, int, error) {
	conversations, total, err := s.conversations.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, errs.Database(err)
	}
	return conversations, total, nil
}

func (s *ConversationService) Participants(ctx context.Context, userID, conversationID string) ([]*models.Participant, error) {
	if _, err := s.participants.GetActive(ctx, conversationID, userID); err != nil {
		return nil, errs.NotParticipant()
	}
	participants, err := s.participants.ListActive(ctx, conversationID)
	if err != nil {
		return nil, errs.Database(err)
	}
	return participants, nil
}

// AddParticipants adds up to MaxParticipantBatch users to a group.
// Admin only. Previously removed users are reactivated with their
// original joined_at.
func (s *ConversationService) AddParticipants(ctx context.Context, actorID, conversationID string, userIDs []string) error {
	if len(userIDs) == 0 || len(userIDs) > models.MaxParticipantBatch {
		return errs.Validation("participant batch must contain 1 to 10 users")
	}
	if hasDuplicates(userIDs) {
		return errs.Validation("duplicate users in batch")
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return errs.ConversationNotFound()
	}
	if !conversation.IsGroup() {
		return errs.InvalidConversation("cannot add participants to a direct conversation")
	}

	actor, err := s.participants.GetActive(ctx, conversationID, actorID)
	if err != nil {
		return errs.NotParticipant()
	}
	if !actor.IsAdmin {
		return errs.NotParticipant()
	}

	for _, id := range userIDs {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return errs.UserNotFound()
		}
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, id := range userIDs {
			existing, err := s.participants.Get(ctx, conversationID, id)
			switch {
			case err == nil && existing.IsActive():
				continue
			case err == nil:
				if err := s.participants.Rejoin(ctx, conversationID, id); err != nil {
					return err
				}
			default:
				if err := s.participants.Add(ctx, models.NewParticipant(conversationID, id, false)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errs.Database(err)
	}

	err = s.bus.Publish(ctx, realtime.ConversationRoom(conversationID), protocol.TypeParticipantAdded, &protocol.ParticipantAdded{
		ConversationID: conversationID,
		Participants:   userIDs,
		AddedBy:        actorID,
	})
	if err != nil {
		slog.Error("participant-added broadcast failed", "conversation_id", conversationID, "error", err)
	}
	return nil
}

// RemoveParticipant removes targetID from a group. Self-removal is open
// to any member; removing someone else requires admin. If the sole admin
// leaves while other members remain, the earliest-joined member is
// promoted first. The last participant cannot be removed.
func (s *ConversationService) RemoveParticipant(ctx context.Context, actorID, conversationID, targetID string) error {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return errs.ConversationNotFound()
	}
	if !conversation.IsGroup() {
		return errs.InvalidConversation("cannot remove participants from a direct conversation")
	}

	isSelf := actorID == targetID
	actor, err := s.participants.GetActive(ctx, conversationID, actorID)
	if err != nil {
		return errs.NotParticipant()
	}
	if !isSelf && !actor.IsAdmin {
		return errs.NotParticipant()
	}

	var promoted string
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// Lock the membership so concurrent removals cannot race the
		// admin guarantee.
		active, err := s.participants.ListActiveForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}

		var target *models.Participant
		admins := 0
		for _, p := range active {
			if p.UserID == targetID {
				target = p
			}
			if p.IsAdmin {
				admins++
			}
		}
		if target == nil {
			return errs.UserNotFound()
		}
		if len(active) == 1 {
			return errs.LastParticipant()
		}

		if target.IsAdmin && admins == 1 {
			// Rows are ordered by joined_at; promote the first non-target.
			for _, p := range active {
				if p.UserID != targetID {
					promoted = p.UserID
					break
				}
			}
			if err := s.participants.SetAdmin(ctx, conversationID, promoted, true); err != nil {
				return err
			}
		}

		return s.participants.Remove(ctx, conversationID, targetID, time.Now().UTC())
	})
	if err != nil {
		return errs.AsDomain(err)
	}

	room := realtime.ConversationRoom(conversationID)
	if promoted != "" {
		err := s.bus.Publish(ctx, room, protocol.TypeAdminPromoted, &protocol.AdminPromoted{
			ConversationID: conversationID,
			UserID:         promoted,
			Reason:         protocol.ReasonLastAdminLeaving,
		})
		if err != nil {
			slog.Error("admin-promoted broadcast failed", "conversation_id", conversationID, "error", err)
		}
	}
	err = s.bus.Publish(ctx, room, protocol.TypeParticipantRemoved, &protocol.ParticipantRemoved{
		ConversationID: conversationID,
		UserID:         targetID,
		RemovedBy:      actorID,
		IsSelfRemoval:  isSelf,
	})
	if err != nil {
		slog.Error("participant-removed broadcast failed", "conversation_id", conversationID, "error", err)
	}
	return nil
}

// SetAdmin grants or revokes the admin role. Revoking the last admin is
// rejected.
func (s *ConversationService) SetAdmin(ctx context.Context, actorID, conversationID, targetID string, isAdmin bool) error {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return errs.ConversationNotFound()
	}
	if !conversation.IsGroup() {
		return errs.InvalidConversation("direct conversations have no roles")
	}

	actor, err := s.participants.GetActive(ctx, conversationID, actorID)
	if err != nil {
		return errs.NotParticipant()
	}
	if !actor.IsAdmin {
		return errs.NotParticipant()
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		active, err := s.participants.ListActiveForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}

		var target *models.Participant
		admins := 0
		for _, p := range active {
			if p.UserID == targetID {
				target = p
			}
			if p.IsAdmin {
				admins++
			}
		}
		if target == nil {
			return errs.UserNotFound()
		}
		if !isAdmin && target.IsAdmin && admins == 1 {
			return errs.LastAdmin()
		}
		return s.participants.SetAdmin(ctx, conversationID, targetID, isAdmin)
	})
	if err != nil {
		return errs.AsDomain(err)
	}
	return nil
}

// UpdateSettings changes the caller's own per-conversation flags.
func (s *ConversationService) UpdateSettings(ctx context.Context, userID, conversationID string, isMuted, isArchived *bool) error {
	if err := s.participants.UpdateSettings(ctx, conversationID, userID, isMuted, isArchived); err != nil {
		return errs.NotParticipant()
	}
	return nil
}

// Update renames a group or changes its avatar. Admin only.
func (s *ConversationService) Update(ctx context.Context, actorID, conversationID string, name, avatarURL *string) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, errs.ConversationNotFound()
	}
	if !conversation.IsGroup() {
		return nil, errs.InvalidConversation("direct conversations cannot be renamed")
	}

	actor, err := s.participants.GetActive(ctx, conversationID, actorID)
	if err != nil {
		return nil, errs.NotParticipant()
	}
	if !actor.IsAdmin {
		return nil, errs.NotParticipant()
	}

	if name != nil {
		if *name == "" || len(*name) > models.MaxGroupNameLength {
			return nil, errs.Validation("group name must be 1 to 100 characters")
		}
		conversation.Name = *name
	}
	if avatarURL != nil {
		conversation.AvatarURL = *avatarURL
	}
	conversation.UpdatedAt = time.Now().UTC()

	if err := s.conversations.Update(ctx, conversation); err != nil {
		return nil, errs.Database(err)
	}

	err = s.bus.Publish(ctx, realtime.ConversationRoom(conversationID), protocol.TypeConversationUpdated, &protocol.ConversationUpdated{
		ConversationID: conversationID,
		Name:           conversation.Name,
		AvatarURL:      conversation.AvatarURL,
	})
	if err != nil {
		slog.Error("conversation-updated broadcast failed", "conversation_id", conversationID, "error", err)
	}
	return conversation, nil
}

// IsParticipant reports active membership, for transport-level checks.
func (s *ConversationService) IsParticipant(ctx context.Context, userID, conversationID string) bool {
	_, err := s.participants.GetActive(ctx, conversationID, userID)
	return err == nil
}

func dedupe(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
