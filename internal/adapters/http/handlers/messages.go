package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ltessier/courier/internal/adapters/http/dto"
	"github.com/ltessier/courier/internal/adapters/http/middleware"
	"github.com/ltessier/courier/internal/application/services"
)

type MessageHandler struct {
	messages  *services.MessageService
	retrieval *services.RetrievalService
}

func NewMessageHandler(messages *services.MessageService, retrieval *services.RetrievalService) *MessageHandler {
	return &MessageHandler{messages: messages, retrieval: retrieval}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req dto.SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	msg, err := h.messages.Send(r.Context(), middleware.GetUserID(r.Context()), services.SendInput{
		ConversationID: chi.URLParam(r, "id"),
		Content:        req.Content,
		ReplyToID:      req.ReplyToID,
		TempID:         req.TempID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, dto.MessageFromModel(msg))
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req dto.EditMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	msg, err := h.messages.Edit(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, dto.MessageFromModel(msg))
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// History pages newest-first with an opaque cursor.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", services.HistoryPageSize)
	includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
	page, err := h.retrieval.History(r.Context(),
		middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), r.URL.Query().Get("cursor"), limit, includeDeleted)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, &dto.HistoryResponse{
		Messages:   dto.MessageListFromModels(page.Messages),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Cached:     page.Cached,
	})
}

// MarkRead marks either the whole conversation read or, when messageIds
// are supplied, only those messages.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req dto.MarkReadRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	var err error
	if len(req.MessageIDs) > 0 {
		err = h.messages.MarkMessagesRead(r.Context(), userID, req.MessageIDs)
	} else {
		err = h.messages.MarkConversationRead(r.Context(), userID, chi.URLParam(r, "id"))
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// Unread aggregates unread counters for the conversations named in the
// comma-separated "conversations" parameter, or for the caller's most
// recently active conversations when the parameter is absent.
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	var conversationIDs []string
	if raw := r.URL.Query().Get("conversations"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				conversationIDs = append(conversationIDs, id)
			}
		}
	}

	summary, err := h.retrieval.Unread(r.Context(), middleware.GetUserID(r.Context()), conversationIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, &dto.UnreadResponse{
		TotalUnread:    summary.TotalUnread,
		ByConversation: summary.ByConversation,
	})
}

// Search runs full text search across the caller's conversations, or a
// single one when "conversationId" is supplied.
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	result, err := h.retrieval.Search(r.Context(), middleware.GetUserID(r.Context()),
		r.URL.Query().Get("q"), r.URL.Query().Get("conversationId"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondPage(w, dto.MessageListFromModels(result.Messages), dto.NewPagination(result.Total, limit, offset))
}
