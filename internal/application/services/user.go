package services

import (
	"context"

	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
)

// UserService serves profiles and user search.
type UserService struct {
	users ports.UserRepository
}

func NewUserService(users ports.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errs.UserNotFound()
	}
	return user, nil
}

// ProfileUpdate carries the mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName    *string
	Bio            *string
	AvatarURL      *string
	HideReadStatus *bool
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errs.UserNotFound()
	}

	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.HideReadStatus != nil {
		user.HideReadStatus = *update.HideReadStatus
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, errs.Database(err)
	}
	return user, nil
}

// Search finds users by username or display name. A non-empty
// excludeContactsOf drops users already on that caller's contact list.
func (s *UserService) Search(ctx context.Context, query, excludeContactsOf string, limit, offset int) ([]*models.User, int, error) {
	if query == "" {
		return nil, 0, errs.Validation("search query is required")
	}
	users, total, err := s.users.Search(ctx, query, excludeContactsOf, limit, offset)
	if err != nil {
		return nil, 0, errs.Database(err)
	}
	return users, total, nil
}
