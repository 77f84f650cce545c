package services

import (
	"context"

	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
)

// ContactService manages the directional contact list, including blocks.
type ContactService struct {
	contacts ports.ContactRepository
	users    ports.UserRepository
}

func NewContactService(contacts ports.ContactRepository, users ports.UserRepository) *ContactService {
	return &ContactService{contacts: contacts, users: users}
}

func (s *ContactService) Add(ctx context.Context, ownerID, contactID string) (*models.Contact, error) {
	if ownerID == contactID {
		return nil, errs.SelfContact()
	}
	if _, err := s.users.GetByID(ctx, contactID); err != nil {
		return nil, errs.UserNotFound()
	}

	contact := models.NewContact(ownerID, contactID)
	if err := s.contacts.Add(ctx, contact); err != nil {
		return nil, errs.Database(err)
	}
	return contact, nil
}

func (s *ContactService) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Contact, int, error) {
	contacts, total, err := s.contacts.List(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, errs.Database(err)
	}
	return contacts, total, nil
}

// Exists reports whether contactID is in ownerID's contact list.
func (s *ContactService) Exists(ctx context.Context, ownerID, contactID string) (bool, error) {
	_, err := s.contacts.Get(ctx, ownerID, contactID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Update changes nickname or favorite flag on an existing contact.
func (s *ContactService) Update(ctx context.Context, ownerID, contactID string, nickname *string, isFavorite *bool) (*models.Contact, error) {
	contact, err := s.contacts.Get(ctx, ownerID, contactID)
	if err != nil {
		return nil, errs.UserNotFound()
	}

	if nickname != nil {
		contact.Nickname = *nickname
	}
	if isFavorite != nil {
		contact.IsFavorite = *isFavorite
	}
	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, errs.Database(err)
	}
	return contact, nil
}

func (s *ContactService) Remove(ctx context.Context, ownerID, contactID string) error {
	if err := s.contacts.Remove(ctx, ownerID, contactID); err != nil {
		return errs.UserNotFound()
	}
	return nil
}

// Block marks the contact blocked, creating the contact row if absent so
// blocking does not require a prior add.
func (s *ContactService) Block(ctx context.Context, ownerID, contactID string) error {
	return s.setBlocked(ctx, ownerID, contactID, true)
}

// Unblock clears the block. Idempotent; unblocking a non-contact is a
// no-op.
func (s *ContactService) Unblock(ctx context.Context, ownerID, contactID string) error {
	return s.setBlocked(ctx, ownerID, contactID, false)
}

func (s *ContactService) setBlocked(ctx context.Context, ownerID, contactID string, blocked bool) error {
	if ownerID == contactID {
		return errs.SelfContact()
	}

	contact, err := s.contacts.Get(ctx, ownerID, contactID)
	if err != nil {
		if !blocked {
			return nil
		}
		if _, err := s.users.GetByID(ctx, contactID); err != nil {
			return errs.UserNotFound()
		}
		contact = models.NewContact(ownerID, contactID)
		contact.IsBlocked = true
		if err := s.contacts.Add(ctx, contact); err != nil {
			return errs.Database(err)
		}
		return nil
	}

	contact.IsBlocked = blocked
	if err := s.contacts.Update(ctx, contact); err != nil {
		return errs.Database(err)
	}
	return nil
}
