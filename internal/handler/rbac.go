// User, role, and permission management

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"opengate/api/internal/model"
	"opengate/api/internal/service"
)

// RBACHandler manages console accounts, roles, and permissions.
type RBACHandler struct {
	db          *gorm.DB
	authService *service.AuthService
	audit       *AuditHandler
}

// NewRBACHandler creates an RBAC handler.
func NewRBACHandler(db *gorm.DB, authService *service.AuthService, audit *AuditHandler) *RBACHandler {
	return &RBACHandler{db: db, authService: authService, audit: audit}
}

// RegisterRoutes registers RBAC routes.
func (h *RBACHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users", h.ListUsers)
	r.POST("/users", h.CreateUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
	r.PUT("/users/:id/role", h.AssignRole)
	r.POST("/users/:id/reset-password", h.ResetPassword)

	r.GET("/roles", h.ListRoles)
	r.GET("/roles/:id", h.GetRole)
	r.PUT("/roles/:id/permissions", h.SetRolePermissions)

	r.GET("/permissions", h.ListPermissions)
}

// ListUsers lists console accounts with their role.
func (h *RBACHandler) ListUsers(c *gin.Context) {
	var users []model.UserWithRole
	err := h.db.Table("users").
		Select("users.*, roles.name as role_name, roles.code as role_code").
		Joins("LEFT JOIN roles ON roles.id = users.role_id").
		Where("users.deleted_at IS NULL").
		Order("users.id").
		Scan(&users).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":  users,
		"total": len(users),
	})
}

// CreateUser creates a console account.
func (h *RBACHandler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := model.User{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		RoleID:   req.RoleID,
		Status:   1,
	}
	if err := h.authService.CreateUser(c.Request.Context(), &user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "user", "create", strconv.Itoa(user.ID))
	user.Password = ""
	c.JSON(http.StatusCreated, user)
}

// UpdateUser edits an account.
func (h *RBACHandler) UpdateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user model.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.audit.RecordOperation(c, "user", "update", strconv.Itoa(id))
	h.db.Preload("Role").First(&user, id)
	c.JSON(http.StatusOK, user)
}

// DeleteUser soft-deletes an account. The caller cannot delete themselves.
func (h *RBACHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if id == c.GetInt("userID") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
		return
	}

	result := h.db.Delete(&model.User{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	h.audit.RecordOperation(c, "user", "delete", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// AssignRole changes an account's role.
func (h *RBACHandler) AssignRole(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var role model.Role
	if err := h.db.First(&role, req.RoleID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role not found"})
		return
	}

	result := h.db.Model(&model.User{}).Where("id = ?", id).Update("role_id", req.RoleID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	h.audit.RecordOperation(c, "user", "assign_role", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "role assigned", "role": role.Code})
}

// ResetPassword sets a new password on an account without the old one.
// Admin only by route guard.
func (h *RBACHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := h.db.Model(&model.User{}).Where("id = ?", id).Update("password", string(hashed))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	h.audit.RecordOperation(c, "user", "reset_password", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}

// ListRoles lists roles with their permission sets.
func (h *RBACHandler) ListRoles(c *gin.Context) {
	var roles []model.Role
	if err := h.db.Preload("Permissions").Order("id").Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":  roles,
		"total": len(roles),
	})
}

// GetRole returns one role with its permissions expanded.
func (h *RBACHandler) GetRole(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var role model.Role
	if err := h.db.Preload("Permissions").First(&role, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}

	ids := make([]int, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		ids = append(ids, p.ID)
	}

	c.JSON(http.StatusOK, model.RoleWithPermissions{
		Role:          role,
		PermissionIDs: ids,
		Permissions:   role.Permissions,
	})
}

// SetRolePermissions replaces a role's permission set.
func (h *RBACHandler) SetRolePermissions(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		PermissionIDs []int `json:"permission_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var role model.Role
	if err := h.db.First(&role, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}
	if role.Code == model.RoleCodeAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin role permissions are fixed"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&model.RolePermission{}).Error; err != nil {
			return err
		}
		for _, pid := range req.PermissionIDs {
			rp := model.RolePermission{RoleID: id, PermissionID: pid}
			if err := tx.Create(&rp).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "user", "set_role_permissions", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "permissions updated"})
}

// ListPermissions lists all permissions grouped by area.
func (h *RBACHandler) ListPermissions(c *gin.Context) {
	var permissions []model.Permission
	if err := h.db.Order("group_name, id").Find(&permissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	grouped := map[string][]model.Permission{}
	for _, p := range permissions {
		grouped[p.GroupName] = append(grouped[p.GroupName], p)
	}

	c.JSON(http.StatusOK, gin.H{
		"list":    permissions,
		"grouped": grouped,
	})
}
