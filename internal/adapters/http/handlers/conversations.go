package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ltessier/courier/internal/adapters/http/dto"
	"github.com/ltessier/courier/internal/adapters/http/middleware"
	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/domain/errs"
)

type ConversationHandler struct {
	conversations *services.ConversationService
}

func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// CreateDirect is idempotent: an existing direct conversation between the
// pair is returned with created=false and 200 instead of 201.
func (h *ConversationHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDirectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.UserID == "" {
		respondError(w, errs.Validation("userId is required"))
		return
	}

	result, err := h.conversations.CreateDirect(r.Context(), middleware.GetUserID(r.Context()), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := dto.ConversationFromModel(result.Conversation)
	resp.Created = &result.Created
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondData(w, status, resp)
}

func (h *ConversationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateGroupRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	conv, err := h.conversations.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.Participants)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, dto.ConversationFromModel(conv))
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	convs, total, err := h.conversations.List(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondPage(w, dto.ConversationListFromModels(convs), dto.NewPagination(total, limit, offset))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.ConversationFromModel(conv))
}

func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateConversationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	conv, err := h.conversations.Update(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Name, req.AvatarURL)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.ConversationFromModel(conv))
}

func (h *ConversationHandler) Participants(w http.ResponseWriter, r *http.Request) {
	parts, err := h.conversations.Participants(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.ParticipantListFromModels(parts))
}

func (h *ConversationHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	var req dto.AddParticipantsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.conversations.AddParticipants(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Participants)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

func (h *ConversationHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	err := h.conversations.RemoveParticipant(r.Context(),
		middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// Leave is self-removal; the same admin-succession rules apply.
func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.conversations.RemoveParticipant(r.Context(), userID, chi.URLParam(r, "id"), userID); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

func (h *ConversationHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req dto.SetAdminRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.conversations.SetAdmin(r.Context(),
		middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userId"), req.IsAdmin)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// UpdateSettings changes the caller's own per-conversation flags.
func (h *ConversationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req dto.ConversationSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.conversations.UpdateSettings(r.Context(),
		middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.IsMuted, req.IsArchived)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}
