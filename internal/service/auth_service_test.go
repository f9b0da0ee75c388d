package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	revokedAll    []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		found := u
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]models.RefreshToken)
	}
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		found := t
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for key, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			m.refreshTokens[key] = t
		}
	}
	return nil
}

func authTestConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "sgpt-test",
	}
}

func hashedPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Nombre: "Ana", Apellido: "Pérez", Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "Ana@uni.edu", Password: "secreta1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleStudent, resp.User.Rol)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Rol)
	assert.Equal(t, "Ana Pérez", claims.FullName)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "otra"})
	require.Error(t, err)
	assert.Equal(t, "INVALID_CREDENTIALS", appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Rol: models.RoleStudent, Activo: false},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreta1"})
	require.Error(t, err)
	assert.Equal(t, "ACCOUNT_INACTIVE", appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterCreatesStudent(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Nuevo@Uni.edu",
		Password: "secreta1",
		Nombre:   "Nuevo",
		Apellido: "Alumno",
	}, models.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleStudent, resp.User.Rol)
	assert.Equal(t, "nuevo@uni.edu", resp.User.Email)

	stored, err := repo.FindByEmail(context.Background(), "nuevo@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, stored.Rol)
	assert.True(t, stored.Activo)
	assert.False(t, strings.Contains(stored.PasswordHash, "secreta1"))
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "ana@uni.edu",
		Password: "secreta1",
		Nombre:   "Ana",
		Apellido: "Pérez",
	}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreta1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreta1"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "another-user", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "u1", models.RequestMeta{}))
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "mala", NewPassword: "nueva123"})
	require.Error(t, err)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "secreta1", NewPassword: "nueva123"})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAll, "u1")

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "nueva123"})
	require.NoError(t, err)
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "ana@uni.edu", PasswordHash: hashedPassword(t, "secreta1"), Rol: models.RoleStudent, Activo: true},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), authTestConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreta1"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "other-secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)
}
