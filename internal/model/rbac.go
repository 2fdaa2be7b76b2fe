package model

import (
	"time"
)

// Role groups permissions. The two system roles (admin, sos) are seeded at
// boot and cannot be deleted.
type Role struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(50);not null;unique"`
	Code        string    `json:"code" gorm:"type:varchar(50);not null;unique"`
	Description string    `json:"description,omitempty" gorm:"type:varchar(200)"`
	IsSystem    bool      `json:"is_system" gorm:"column:is_system;not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:now()"`

	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;"`
}

func (Role) TableName() string {
	return "roles"
}

// Permission codes used by route guards.
const (
	PermAccessView     = "access.view"
	PermAccessCheckIn  = "access.check_in"
	PermAccessCheckOut = "access.check_out"
	PermLogsExport     = "logs.export"
	PermRosterManage   = "roster.manage"
	PermScheduleManage = "schedule.manage"
	PermIncidentReport = "incident.report"
	PermIncidentManage = "incident.manage"
	PermUserManage     = "user.manage"
	PermWebhookManage  = "webhook.manage"
)

// Permission is a single guarded capability.
type Permission struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Code        string    `json:"code" gorm:"type:varchar(100);not null;unique"`
	Description string    `json:"description,omitempty" gorm:"type:varchar(200)"`
	GroupName   string    `json:"group_name" gorm:"column:group_name;type:varchar(50);not null;default:'other'"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:now()"`
}

func (Permission) TableName() string {
	return "permissions"
}

// RolePermission links roles to permissions.
type RolePermission struct {
	ID           int       `json:"id" gorm:"primaryKey"`
	RoleID       int       `json:"role_id" gorm:"column:role_id;not null;index"`
	PermissionID int       `json:"permission_id" gorm:"column:permission_id;not null;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;default:now()"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// UserWithRole is a user row joined with its role for listing.
type UserWithRole struct {
	User
	RoleName *string `json:"role_name,omitempty" gorm:"column:role_name"`
	RoleCode *string `json:"role_code,omitempty" gorm:"column:role_code"`
}

// RoleWithPermissions is a role with its permission set expanded.
type RoleWithPermissions struct {
	Role
	PermissionIDs []int        `json:"permission_ids,omitempty"`
	Permissions   []Permission `json:"permissions,omitempty"`
}

// AssignRoleRequest assigns a role to a user.
type AssignRoleRequest struct {
	RoleID int `json:"role_id" binding:"required"`
}
