package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ltessier/courier/internal/auth"
	"github.com/ltessier/courier/internal/domain/errs"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth verifies the bearer token and stores the authenticated user ID in
// the request context. Requests without a valid token are rejected.
func Auth(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				rejectAuth(w, errs.TokenRequired())
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				rejectAuth(w, errs.AsDomain(err))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func rejectAuth(w http.ResponseWriter, de *errs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(de.Status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": string(de.Code), "message": de.Message},
	})
}

// GetUserID returns the authenticated user ID, or "" outside the auth
// middleware.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// SetUserID is for tests that exercise handlers without the middleware.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
