package handlers

import (
	"net/http"

	"github.com/ltessier/courier/internal/adapters/http/dto"
	"github.com/ltessier/courier/internal/adapters/http/middleware"
	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/domain/errs"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, pair, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusCreated, &dto.AuthResponse{
		User:         dto.UserFromModel(user, true),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, errs.Validation("username and password are required"))
		return
	}

	user, pair, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, &dto.AuthResponse{
		User:         dto.UserFromModel(user, true),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.RefreshToken == "" {
		respondError(w, errs.TokenRequired())
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, &dto.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// LogoutAll requires authentication; it kills every session and live
// connection of the caller.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.auth.LogoutAll(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}
