package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "nombre", "apellido", "rol", "cedula", "telefono", "activo", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "ana@uni.edu", "hash", "Ana", "Pérez", string(models.RoleStudent), nil, nil, true, now, now, now)
}

func TestUserFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, nombre, apellido, rol, cedula, telefono, activo, last_login, created_at, updated_at FROM usuarios WHERE email = $1 LIMIT 1")).
		WithArgs("ana@uni.edu").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByEmail(context.Background(), "ana@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "ana@uni.edu", user.Email)
	assert.Equal(t, models.RoleStudent, user.Rol)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserEmailExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM usuarios WHERE email = $1)")).
		WithArgs("ana@uni.edu").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "ana@uni.edu")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, nombre, apellido, rol, cedula, telefono, activo, last_login, created_at, updated_at FROM usuarios WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(userRows(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM usuarios WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListFiltersByRol(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rol := models.RoleTutor
	mock.ExpectQuery(regexp.QuoteMeta("FROM usuarios WHERE 1=1 AND rol = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(rol).
		WillReturnRows(userRows(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM usuarios WHERE 1=1 AND rol = $1")).
		WithArgs(rol).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.UserFilter{Rol: &rol})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO usuarios").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Email: "nuevo@uni.edu", Nombre: "Nuevo", Apellido: "Alumno", Rol: models.RoleStudent, Activo: true, PasswordHash: "hash"}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRefreshTokenRoundTrip(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "t1", UserID: "u1", Token: "opaque", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()})
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow("t1", "u1", "opaque", now.Add(time.Hour), now, false, nil, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1")).
		WithArgs("opaque").
		WillReturnRows(rows)

	token, err := repo.FindRefreshToken(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "u1", token.UserID)
	assert.False(t, token.Revoked)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "t1", time.Now()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserDeleteDeactivates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE usuarios SET activo = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
