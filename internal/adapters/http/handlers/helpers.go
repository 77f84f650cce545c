package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ltessier/courier/internal/adapters/http/dto"
	"github.com/ltessier/courier/internal/domain/errs"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

func respondJSON(w http.ResponseWriter, status int, env *dto.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, &dto.Envelope{Success: true, Data: data})
}

func respondPage(w http.ResponseWriter, data any, pagination *dto.Pagination) {
	respondJSON(w, http.StatusOK, &dto.Envelope{Success: true, Data: data, Pagination: pagination})
}

// respondError maps any error to the envelope. Server-side causes are
// logged here and never leak to the client.
func respondError(w http.ResponseWriter, err error) {
	de := errs.AsDomain(err)
	if de.Status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", de.Code, "error", err)
	}
	if de.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(de.RetryAfter/1000, 10))
	}
	respondJSON(w, de.Status, &dto.Envelope{
		Success: false,
		Error: &dto.ErrorBody{
			Code:       string(de.Code),
			Message:    de.Message,
			RetryAfter: de.RetryAfter,
		},
	})
}

func decodeBody(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errs.InvalidPayload("malformed request body")
	}
	return nil
}

func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// pageParams clamps limit/offset to sane bounds.
func pageParams(r *http.Request) (limit, offset int) {
	limit = parseIntQuery(r, "limit", defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	offset = parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
