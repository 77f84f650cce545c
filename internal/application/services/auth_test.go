package services

import (
	"context"
	"testing"
	"time"

	"github.com/ltessier/courier/internal/auth"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

type authEnv struct {
	users    *mockUserRepo
	sessions *mockSessionRepo
	issuer   *auth.TokenIssuer
	bus      *mockBus
	svc      *AuthService
}

func newAuthEnv() *authEnv {
	env := &authEnv{
		users:    newMockUserRepo(),
		sessions: newMockSessionRepo(),
		issuer:   auth.NewTokenIssuer("test-access-secret", 15*time.Minute),
		bus:      &mockBus{},
	}
	env.svc = NewAuthService(env.users, env.sessions, env.issuer, env.bus, &mockIDGenerator{}, "test-refresh-secret", 7*24*time.Hour)
	return env
}

func TestAuthService_Register(t *testing.T) {
	env := newAuthEnv()

	user, pair, err := env.svc.Register(context.Background(), "alice", "Alice@Example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "usr_test1" {
		t.Errorf("user ID = %s", user.ID)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "s3cretpass" {
		t.Error("password stored in clear")
	}

	claims, err := env.issuer.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.Subject != user.ID || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}

	// Only the HMAC of the refresh token is stored.
	session := env.sessions.sessions[pair.SessionID]
	if session == nil {
		t.Fatal("session not persisted")
	}
	if session.RefreshToken == pair.RefreshToken {
		t.Error("refresh token stored in clear")
	}
	if !session.Active {
		t.Error("session must start active")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	env := newAuthEnv()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "ab", "a@b.com", "s3cretpass"},
		{"bad characters", "not ok!", "a@b.com", "s3cretpass"},
		{"bad email", "alice", "nope", "s3cretpass"},
		{"short password", "alice", "a@b.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.svc.Register(context.Background(), tc.username, tc.email, tc.password)
			if errs.CodeOf(err) != errs.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_Duplicates(t *testing.T) {
	env := newAuthEnv()

	if _, _, err := env.svc.Register(context.Background(), "alice", "alice@example.com", "s3cretpass"); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, _, err := env.svc.Register(context.Background(), "alice", "other@example.com", "s3cretpass")
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for duplicate username, got %v", err)
	}
	_, _, err = env.svc.Register(context.Background(), "alice2", "alice@example.com", "s3cretpass")
	if errs.CodeOf(err) != errs.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for duplicate email, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	env := newAuthEnv()
	env.svc.Register(context.Background(), "alice", "alice@example.com", "s3cretpass")

	user, pair, err := env.svc.Login(context.Background(), "alice", "s3cretpass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %s", user.Username)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("incomplete token pair")
	}

	// Wrong password and unknown user fail identically.
	if _, _, err := env.svc.Login(context.Background(), "alice", "wrong"); errs.CodeOf(err) != errs.CodeInvalidToken {
		t.Fatalf("expected INVALID_TOKEN for wrong password, got %v", err)
	}
	if _, _, err := env.svc.Login(context.Background(), "ghost", "s3cretpass"); errs.CodeOf(err) != errs.CodeInvalidToken {
		t.Fatalf("expected INVALID_TOKEN for unknown user, got %v", err)
	}
}

func TestAuthService_Refresh_Rotates(t *testing.T) {
	env := newAuthEnv()
	_, pair, _ := env.svc.Register(context.Background(), "alice", "alice@example.com", "s3cretpass")

	rotated, err := env.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("refresh token not rotated")
	}
	if rotated.SessionID != pair.SessionID {
		t.Error("rotation must keep the session")
	}

	// The old token is dead after rotation.
	if _, err := env.svc.Refresh(context.Background(), pair.RefreshToken); errs.CodeOf(err) != errs.CodeInvalidToken {
		t.Fatalf("expected INVALID_TOKEN for replayed token, got %v", err)
	}

	// The new one still works.
	if _, err := env.svc.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestAuthService_Refresh_ExpiredSession(t *testing.T) {
	env := newAuthEnv()
	_, pair, _ := env.svc.Register(context.Background(), "alice", "alice@example.com", "s3cretpass")

	env.sessions.sessions[pair.SessionID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err := env.svc.Refresh(context.Background(), pair.RefreshToken)
	if errs.CodeOf(err) != errs.CodeTokenExpired {
		t.Fatalf("expected TOKEN_EXPIRED, got %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	env := newAuthEnv()
	_, pair, _ := env.svc.Register(context.Background(), "alice", "alice@example.com", "s3cretpass")

	if err := env.svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.sessions.sessions[pair.SessionID].Active {
		t.Error("session still active after logout")
	}
	if _, err := env.svc.Refresh(context.Background(), pair.RefreshToken); errs.CodeOf(err) != errs.CodeTokenExpired {
		t.Fatalf("expected TOKEN_EXPIRED after logout, got %v", err)
	}

	// Logging out twice, or with garbage, is a no-op.
	if err := env.svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Errorf("second logout: %v", err)
	}
	if err := env.svc.Logout(context.Background(), "garbage"); err != nil {
		t.Errorf("garbage logout: %v", err)
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	env := newAuthEnv()
	user, first, _ := env.svc.Register(context.Background(), "alice", "alice@example.com", "s3cretpass")
	_, second, _ := env.svc.Login(context.Background(), "alice", "s3cretpass")
	env.bus.events = nil

	if err := env.svc.LogoutAll(context.Background(), user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sessionID := range []string{first.SessionID, second.SessionID} {
		if env.sessions.sessions[sessionID].Active {
			t.Errorf("session %s still active", sessionID)
		}
	}

	events := env.bus.ofType(protocol.TypeForceDisconnect)
	if len(events) != 1 {
		t.Fatalf("expected 1 force:disconnect, got %d", len(events))
	}
	if events[0].Room != realtime.PersonalRoom(user.ID) {
		t.Errorf("force:disconnect went to %s", events[0].Room)
	}
	if payload := events[0].Payload.(*protocol.ForceDisconnect); payload.Reason != "logged_out" {
		t.Errorf("reason = %q", payload.Reason)
	}
}
