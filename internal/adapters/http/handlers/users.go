package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/ltessier/courier/internal/adapters/http/dto"
	"github.com/ltessier/courier/internal/adapters/http/middleware"
	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
)

type UserHandler struct {
	users          *services.UserService
	presence       *services.PresenceService
	avatarDir      string
	avatarMaxBytes int64
}

func NewUserHandler(users *services.UserService, presence *services.PresenceService, avatarDir string, avatarMaxBytes int64) *UserHandler {
	return &UserHandler{
		users:          users,
		presence:       presence,
		avatarDir:      avatarDir,
		avatarMaxBytes: avatarMaxBytes,
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.UserFromModel(user, true))
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), services.ProfileUpdate{
		DisplayName:    req.DisplayName,
		Bio:            req.Bio,
		AvatarURL:      req.AvatarURL,
		HideReadStatus: req.HideReadStatus,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.UserFromModel(user, true))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.UserFromModel(user, false))
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, offset := pageParams(r)

	var excludeContactsOf string
	if r.URL.Query().Get("excludeContacts") == "true" {
		excludeContactsOf = middleware.GetUserID(r.Context())
	}

	users, total, err := h.users.Search(r.Context(), query, excludeContactsOf, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondPage(w, dto.UserListFromModels(users), dto.NewPagination(total, limit, offset))
}

// avatarExtensions maps the accepted sniffed content types to the stored
// file extension. Anything else is rejected.
var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// UploadAvatar accepts a multipart "avatar" file, bounded by the
// configured size, and points the caller's profile at the stored copy.
// One file per user; a re-upload replaces the previous avatar.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.avatarMaxBytes)

	file, _, err := r.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, errs.Validation(fmt.Sprintf("avatar exceeds %d bytes", h.avatarMaxBytes)))
			return
		}
		respondError(w, errs.InvalidPayload("avatar file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, errs.Validation(fmt.Sprintf("avatar exceeds %d bytes", h.avatarMaxBytes)))
			return
		}
		respondError(w, errs.Internal(err))
		return
	}

	ext, ok := avatarExtensions[http.DetectContentType(data)]
	if !ok {
		respondError(w, errs.Validation("avatar must be a PNG, JPEG, or WebP image"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := os.MkdirAll(h.avatarDir, 0o755); err != nil {
		respondError(w, errs.Internal(err))
		return
	}
	name := userID + ext
	if err := os.WriteFile(filepath.Join(h.avatarDir, name), data, 0o644); err != nil {
		respondError(w, errs.Internal(err))
		return
	}

	avatarURL := "/static/avatars/" + name
	user, err := h.users.UpdateProfile(r.Context(), userID, services.ProfileUpdate{AvatarURL: &avatarURL})
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.UserFromModel(user, true))
}

// UpdatePrivacy toggles whether the caller's read receipts are shown to
// other participants.
func (h *UserHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HideReadStatus *bool `json:"hideReadStatus"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.HideReadStatus == nil {
		respondError(w, errs.Validation("hideReadStatus is required"))
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), services.ProfileUpdate{
		HideReadStatus: req.HideReadStatus,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.UserFromModel(user, true))
}

// Presence exposes another user's effective live status.
func (h *UserHandler) Presence(w http.ResponseWriter, r *http.Request) {
	p, err := h.presence.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.PresenceFromModel(p))
}

// SetStatus applies an explicit presence status for the caller.
func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Status == "" {
		respondError(w, errs.Validation("status is required"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.presence.SetStatus(r.Context(), userID, models.UserStatus(req.Status)); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}
