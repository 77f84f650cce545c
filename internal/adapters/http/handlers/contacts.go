package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ltessier/courier/internal/adapters/http/dto"
	"github.com/ltessier/courier/internal/adapters/http/middleware"
	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/domain/errs"
)

type ContactHandler struct {
	contacts *services.ContactService
}

func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req dto.AddContactRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.UserID == "" {
		respondError(w, errs.Validation("userId is required"))
		return
	}

	contact, err := h.contacts.Add(r.Context(), middleware.GetUserID(r.Context()), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, dto.ContactFromModel(contact))
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	contacts, total, err := h.contacts.List(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondPage(w, dto.ContactListFromModels(contacts), dto.NewPagination(total, limit, offset))
}

func (h *ContactHandler) Exists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.contacts.Exists(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateContactRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	contact, err := h.contacts.Update(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Nickname, req.IsFavorite)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.ContactFromModel(contact))
}

func (h *ContactHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Remove(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

func (h *ContactHandler) Block(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Block(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

func (h *ContactHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Unblock(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}
