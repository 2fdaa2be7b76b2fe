package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// RBACMiddleware guards routes by permission code. Admin passes every check.
type RBACMiddleware struct {
	db *gorm.DB
}

// NewRBACMiddleware creates an RBAC middleware.
func NewRBACMiddleware(db *gorm.DB) *RBACMiddleware {
	return &RBACMiddleware{db: db}
}

// RequirePermission rejects the request unless the caller's role carries
// the permission.
func (m *RBACMiddleware) RequirePermission(permissionCode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := m.currentUser(c)
		if !ok {
			return
		}

		if m.isAdmin(user) {
			c.Next()
			return
		}

		if !m.hasPermission(user, permissionCode) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":      "permission denied",
				"permission": permissionCode,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAnyPermission passes when the caller holds at least one of the
// listed permissions.
func (m *RBACMiddleware) RequireAnyPermission(permissionCodes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := m.currentUser(c)
		if !ok {
			return
		}

		if m.isAdmin(user) {
			c.Next()
			return
		}

		for _, code := range permissionCodes {
			if m.hasPermission(user, code) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":       "permission denied",
			"permissions": permissionCodes,
		})
		c.Abort()
	}
}

// RequireRole restricts a route to specific role codes.
func (m *RBACMiddleware) RequireRole(roleCodes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := m.currentUser(c)
		if !ok {
			return
		}

		roleCode := m.roleCode(user)
		for _, code := range roleCodes {
			if roleCode == code {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error": "role not allowed",
		})
		c.Abort()
	}
}

func (m *RBACMiddleware) currentUser(c *gin.Context) (*model.User, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
		return nil, false
	}

	var user model.User
	if err := m.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		c.Abort()
		return nil, false
	}
	return &user, true
}

func (m *RBACMiddleware) roleCode(user *model.User) string {
	if user.RoleID == nil {
		return ""
	}
	var role model.Role
	if err := m.db.First(&role, *user.RoleID).Error; err != nil {
		return ""
	}
	return role.Code
}

func (m *RBACMiddleware) isAdmin(user *model.User) bool {
	return m.roleCode(user) == model.RoleCodeAdmin
}

func (m *RBACMiddleware) hasPermission(user *model.User, permissionCode string) bool {
	if user.RoleID == nil {
		return false
	}

	var count int64
	m.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ? AND permissions.code = ?", *user.RoleID, permissionCode).
		Count(&count)

	return count > 0
}

// PermissionChecker answers permission questions inside handlers, for
// endpoints whose behavior varies by role rather than being fully guarded.
type PermissionChecker struct {
	db     *gorm.DB
	userID int
}

// NewPermissionChecker creates a checker bound to one user.
func NewPermissionChecker(db *gorm.DB, userID int) *PermissionChecker {
	return &PermissionChecker{db: db, userID: userID}
}

// HasPermission reports whether the user's role carries the permission.
// Admin always does.
func (c *PermissionChecker) HasPermission(permissionCode string) bool {
	var user model.User
	if err := c.db.First(&user, c.userID).Error; err != nil {
		return false
	}

	if user.RoleID == nil {
		return false
	}

	var role model.Role
	if err := c.db.First(&role, *user.RoleID).Error; err == nil {
		if role.Code == model.RoleCodeAdmin {
			return true
		}
	}

	var count int64
	c.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ? AND permissions.code = ?", *user.RoleID, permissionCode).
		Count(&count)

	return count > 0
}

// RoleCode returns the user's role code, empty when unassigned.
func (c *PermissionChecker) RoleCode() string {
	var user model.User
	if err := c.db.First(&user, c.userID).Error; err != nil {
		return ""
	}
	if user.RoleID == nil {
		return ""
	}
	var role model.Role
	if err := c.db.First(&role, *user.RoleID).Error; err != nil {
		return ""
	}
	return role.Code
}

// IsAdmin reports whether the user holds the admin role.
func (c *PermissionChecker) IsAdmin() bool {
	return c.RoleCode() == model.RoleCodeAdmin
}

// IsSOS reports whether the user holds the gate operator role.
func (c *PermissionChecker) IsSOS() bool {
	return c.RoleCode() == model.RoleCodeSOS
}

// Permissions lists every permission code on the user's role.
func (c *PermissionChecker) Permissions() []string {
	var user model.User
	if err := c.db.First(&user, c.userID).Error; err != nil {
		return []string{}
	}
	if user.RoleID == nil {
		return []string{}
	}

	var permissions []string
	c.db.Table("permissions").
		Select("permissions.code").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", *user.RoleID).
		Pluck("permissions.code", &permissions)

	return permissions
}
