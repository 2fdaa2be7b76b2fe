package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"opengate/api/internal/model"
	"opengate/api/internal/service"
)

// AuthHandler handles login, tokens, and the caller's own account.
type AuthHandler struct {
	authService *service.AuthService
	audit       *AuditHandler
	jwtSecret   []byte
	tokenTTL    time.Duration
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(authService *service.AuthService, audit *AuditHandler, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{
		authService: authService,
		audit:       audit,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
	}
}

// Claims is the JWT payload issued on login.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	RoleCode string `json:"role_code,omitempty"`
	jwt.RegisteredClaims
}

// Login authenticates credentials and returns a signed token.
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "credentials"
// @Success 200 {object} model.LoginResponse
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if h.audit != nil {
			h.audit.RecordLogin(0, req.Username, c.ClientIP(), c.Request.UserAgent(), false, err.Error())
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	if h.audit != nil {
		h.audit.RecordLogin(user.ID, user.Username, c.ClientIP(), c.Request.UserAgent(), true, "")
	}

	c.JSON(http.StatusOK, model.LoginResponse{
		Token: token,
		User:  *user,
	})
}

// GetMe returns the authenticated user's own account.
func (h *AuthHandler) GetMe(c *gin.Context) {
	claims, exists := c.Get("claims")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	tokenClaims := claims.(*Claims)

	c.JSON(http.StatusOK, gin.H{
		"user_id":   tokenClaims.UserID,
		"username":  tokenClaims.Username,
		"role_code": tokenClaims.RoleCode,
	})
}

// ChangePassword changes the caller's own password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// AuthMiddleware validates the bearer token and stores the identity on the
// context for downstream handlers and guards.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("roleCode", claims.RoleCode)
		c.Set("claims", claims)
		c.Next()
	}
}

func (h *AuthHandler) generateToken(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
			Subject:   user.Username,
		},
	}
	if user.Role != nil {
		claims.RoleCode = user.Role.Code
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
