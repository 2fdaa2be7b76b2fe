package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opengate/api/internal/model"
)

func newAuthTestRouter(h *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", h.AuthMiddleware(), h.GetMe)
	return r
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	h := NewAuthHandler(nil, nil, "test-secret", time.Hour)
	r := newAuthTestRouter(h)

	user := &model.User{ID: 7, Username: "guard1",
		Role: &model.Role{Code: model.RoleCodeSOS}}
	token, err := h.generateToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 7, body["user_id"])
	assert.Equal(t, "guard1", body["username"])
	assert.Equal(t, model.RoleCodeSOS, body["role_code"])
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	h := NewAuthHandler(nil, nil, "test-secret", time.Hour)
	r := newAuthTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	h := NewAuthHandler(nil, nil, "test-secret", time.Hour)
	r := newAuthTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthHandler(nil, nil, "other-secret", time.Hour)
	token, err := issuer.generateToken(&model.User{ID: 1, Username: "guard1"})
	require.NoError(t, err)

	h := NewAuthHandler(nil, nil, "test-secret", time.Hour)
	r := newAuthTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	h := NewAuthHandler(nil, nil, "test-secret", time.Hour)

	now := time.Now().Add(-2 * time.Hour)
	claims := Claims{
		UserID:   1,
		Username: "guard1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			Subject:   "guard1",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	r := newAuthTestRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateTokenCarriesRole(t *testing.T) {
	h := NewAuthHandler(nil, nil, "test-secret", time.Hour)

	token, err := h.generateToken(&model.User{ID: 3, Username: "ops",
		Role: &model.Role{Code: model.RoleCodeAdmin}})
	require.NoError(t, err)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, 3, claims.UserID)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, model.RoleCodeAdmin, claims.RoleCode)
	assert.Equal(t, "ops", claims.Subject)
}
