package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/pkg/config"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
)

type mockAuthStore struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revoked       []string
	revokedUsers  []string
	audits        []models.AuditLog
	passwordSet   string
}

func (m *mockAuthStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	m.passwordSet = passwordHash
	return nil
}

func (m *mockAuthStore) TouchLastLogin(ctx context.Context, userID string) error { return nil }

func (m *mockAuthStore) StoreRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStore) RevokeRefreshToken(ctx context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	delete(m.refreshTokens, token)
	return nil
}

func (m *mockAuthStore) RevokeRefreshTokensForUser(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockAuthStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.audits = append(m.audits, *entry)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	store := &mockAuthStore{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "maria@campus.edu", PasswordHash: string(hash), FullName: "Maria Santos", Role: models.RoleStudent, Active: true},
		"u2": {ID: "u2", Email: "gone@campus.edu", PasswordHash: string(hash), FullName: "Gone User", Role: models.RoleStudent, Active: false},
	}}
	cfg := config.JWTConfig{Secret: "test_secret", Expiration: time.Hour, RefreshExpiration: 24 * time.Hour}
	return NewAuthService(store, cfg, zap.NewNop()), store
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), &models.LoginRequest{Email: "maria@campus.edu", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Len(t, store.refreshTokens, 1)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "Maria Santos", claims.FullName)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), &models.LoginRequest{Email: "maria@campus.edu", Password: "wrong"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), &models.LoginRequest{Email: "gone@campus.edu", Password: "secret123"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, store := newAuthFixture(t)

	login, err := svc.Login(context.Background(), &models.LoginRequest{Email: "maria@campus.edu", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), &models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Contains(t, store.revoked, login.RefreshToken)

	// The rotated token is single use.
	_, err = svc.RefreshToken(context.Background(), &models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErr.Status)
}

func TestRefreshTokenExpired(t *testing.T) {
	svc, store := newAuthFixture(t)
	store.refreshTokens = map[string]*models.RefreshToken{
		"stale": {UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)},
	}

	_, err := svc.RefreshToken(context.Background(), &models.RefreshTokenRequest{RefreshToken: "stale"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErr.Status)
	assert.Contains(t, store.revoked, "stale")
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, store := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "u1", &models.ChangePasswordRequest{OldPassword: "secret123", NewPassword: "longer-secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, store.passwordSet)
	assert.Contains(t, store.revokedUsers, "u1")

	err = svc.ChangePassword(context.Background(), "u1", &models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "whatever"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)

	other := NewAuthService(&mockAuthStore{}, config.JWTConfig{Secret: "different", Expiration: time.Hour}, zap.NewNop())
	login, err := svc.Login(context.Background(), &models.LoginRequest{Email: "maria@campus.edu", Password: "secret123"})
	require.NoError(t, err)
	_, err = other.ValidateToken(login.AccessToken)
	assert.Error(t, err)
}
