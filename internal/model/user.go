package model

import (
	"time"

	"gorm.io/gorm"
)

// Built-in role codes. Admin manages the roster and accounts; SOS is the
// security-operations role working the gate.
const (
	RoleCodeAdmin = "admin"
	RoleCodeSOS   = "sos"
)

// User represents a console account.
type User struct {
	ID        int            `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"uniqueIndex;size:50"`
	Password  string         `json:"-" gorm:"size:255"` // hashed password
	FullName  string         `json:"full_name,omitempty" gorm:"column:full_name;size:100"`
	Email     string         `json:"email" gorm:"uniqueIndex;size:100"`
	Phone     string         `json:"phone" gorm:"size:20"`
	RoleID    *int           `json:"role_id,omitempty" gorm:"column:role_id;index"`
	Status    int            `json:"status" gorm:"default:1"` // 0: inactive, 1: active
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Role *Role `json:"role,omitempty" gorm:"foreignKey:RoleID"`
}

func (User) TableName() string {
	return "users"
}

// LoginRequest represents login credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateUserRequest creates a console account.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	RoleID   *int   `json:"role_id"`
}

// UpdateUserRequest updates an account. Empty fields are left unchanged.
type UpdateUserRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Status   *int   `json:"status"`
}

// ChangePasswordRequest changes the caller's own password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}
