package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ltessier/courier/internal/auth"
	"github.com/ltessier/courier/internal/domain/errs"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/realtime"
	"github.com/ltessier/courier/pkg/protocol"
)

// AuthService handles registration, login, token refresh and logout.
// Access tokens are short-lived JWTs; refresh tokens are opaque strings
// bound to a session row and rotated on every use. Only an HMAC of the
// refresh token is stored, so a leaked session table cannot be replayed.
type AuthService struct {
	users         ports.UserRepository
	sessions      ports.SessionRepository
	issuer        *auth.TokenIssuer
	bus           ports.EventBus
	ids           ports.IDGenerator
	refreshSecret []byte
	refreshTTL    time.Duration
}

func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	issuer *auth.TokenIssuer,
	bus ports.EventBus,
	ids ports.IDGenerator,
	refreshSecret string,
	refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		issuer:        issuer,
		bus:           bus,
		ids:           ids,
		refreshSecret: []byte(refreshSecret),
		refreshTTL:    refreshTTL,
	}
}

// TokenPair is what login, register and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, *TokenPair, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if !models.ValidUsername(username) {
		return nil, nil, errs.Validation("username must be 3 to 50 alphanumeric or underscore characters")
	}
	if !strings.Contains(email, "@") {
		return nil, nil, errs.Validation("invalid email address")
	}
	if len(password) < auth.MinPasswordLength {
		return nil, nil, errs.Validation(fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, nil, errs.Validation("username already taken")
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, errs.Validation("email already registered")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, errs.Internal(err)
	}

	user := models.NewUser(s.ids.UserID(), username, email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, errs.Database(err)
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, nil, errs.InvalidToken()
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil, errs.InvalidToken()
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates the refresh token and mints a fresh access token. An
// expired or deactivated session rejects with TOKEN_EXPIRED.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	session, err := s.sessions.GetByRefreshToken(ctx, s.hashRefresh(refreshToken))
	if err != nil {
		return nil, errs.InvalidToken()
	}
	if !session.Usable(time.Now().UTC()) {
		return nil, errs.TokenExpired()
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, errs.InvalidToken()
	}

	newToken, err := randomToken()
	if err != nil {
		return nil, errs.Internal(err)
	}
	expiresAt := time.Now().UTC().Add(s.refreshTTL)
	if err := s.sessions.Rotate(ctx, session.ID, s.hashRefresh(newToken), expiresAt); err != nil {
		return nil, errs.Database(err)
	}

	access, err := s.issuer.Issue(user.ID, user.Username)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: newToken, SessionID: session.ID}, nil
}

// Logout deactivates the session behind the refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessions.GetByRefreshToken(ctx, s.hashRefresh(refreshToken))
	if err != nil {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, session.ID); err != nil {
		return errs.Database(err)
	}
	return nil
}

// LogoutAll deactivates every session for the user and force-disconnects
// their live connections on every instance.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.DeactivateAllForUser(ctx, userID); err != nil {
		return errs.Database(err)
	}

	err := s.bus.Publish(ctx, realtime.PersonalRoom(userID), protocol.TypeForceDisconnect, &protocol.ForceDisconnect{
		Reason: "logged_out",
	})
	if err != nil {
		slog.Error("force-disconnect publish failed", "user_id", userID, "error", err)
	}
	return nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *AuthService) VerifyAccess(token string) (*auth.Claims, error) {
	return s.issuer.Verify(token)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	refresh, err := randomToken()
	if err != nil {
		return nil, errs.Internal(err)
	}

	session := models.NewSession(s.ids.SessionID(), user.ID, s.hashRefresh(refresh), s.refreshTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, errs.Database(err)
	}

	access, err := s.issuer.Issue(user.ID, user.Username)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, SessionID: session.ID}, nil
}

// hashRefresh keys the stored token on the refresh secret. Rotating the
// secret invalidates every outstanding session.
func (s *AuthService) hashRefresh(token string) string {
	mac := hmac.New(sha256.New, s.refreshSecret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
