package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, path string, allowed ...string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/usuarios/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Rol: models.RoleAdmin}
	w := performRBAC(t, claims, "/usuarios/u2", "administrador")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Rol: models.RoleStudent}
	w := performRBAC(t, claims, "/usuarios/u2", "administrador")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesRouteParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Rol: models.RoleStudent}

	w := performRBAC(t, claims, "/usuarios/u1", "administrador", "SELF")
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRBAC(t, claims, "/usuarios/u2", "administrador", "SELF")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACWithoutClaims(t *testing.T) {
	w := performRBAC(t, nil, "/usuarios/u1", "administrador")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
