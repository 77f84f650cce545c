package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ltessier/courier/internal/auth"
)

func authedHandler(t *testing.T, issuer *auth.TokenIssuer) (http.Handler, *string) {
	t.Helper()

	var seenUserID string
	handler := Auth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &seenUserID
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Success {
		t.Error("rejection must report success=false")
	}
	return body.Error.Code
}

func TestAuth_ValidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Minute)
	handler, seenUserID := authedHandler(t, issuer)

	token, err := issuer.Issue("usr_alice", "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if *seenUserID != "usr_alice" {
		t.Errorf("user ID in context = %q", *seenUserID)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Minute)
	handler, _ := authedHandler(t, issuer)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "TOKEN_REQUIRED" {
		t.Errorf("code = %s", code)
	}
}

func TestAuth_MalformedToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Minute)
	handler, _ := authedHandler(t, issuer)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "INVALID_TOKEN" {
		t.Errorf("code = %s", code)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", -time.Minute)
	handler, _ := authedHandler(t, issuer)

	token, err := issuer.Issue("usr_alice", "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "TOKEN_EXPIRED" {
		t.Errorf("code = %s", code)
	}
}

func TestAuth_WrongScheme(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Minute)
	handler, _ := authedHandler(t, issuer)

	token, _ := issuer.Issue("usr_alice", "alice")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Token "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rr.Code)
	}
}
