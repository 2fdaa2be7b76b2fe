package model

import (
	"time"
)

// Visit status values.
const (
	VisitStatusPending   = "pending"
	VisitStatusCompleted = "completed"
	VisitStatusCancelled = "cancelled"
)

// ScheduledVisit is a planned supplier visit. Dates and times are kept as
// the user-picked local values, never converted through UTC.
type ScheduledVisit struct {
	ID         int       `json:"id" gorm:"primaryKey"`
	SupplierID int       `json:"supplier_id" gorm:"column:supplier_id;not null;index"`
	VisitDate  string    `json:"visit_date" gorm:"column:visit_date;type:date;not null;index"`
	VisitTime  string    `json:"visit_time" gorm:"column:visit_time;type:varchar(5);not null"` // HH:MM
	Reason     string    `json:"reason,omitempty" gorm:"type:text"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedBy  *int      `json:"created_by,omitempty" gorm:"column:created_by"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null;default:now()"`

	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (ScheduledVisit) TableName() string {
	return "scheduled_visits"
}

// CreateScheduleRequest creates a scheduled visit.
type CreateScheduleRequest struct {
	SupplierID int    `json:"supplier_id" binding:"required"`
	VisitDate  string `json:"visit_date" binding:"required"` // YYYY-MM-DD
	VisitTime  string `json:"visit_time" binding:"required"` // HH:MM
	Reason     string `json:"reason"`
}

// UpdateScheduleRequest updates a scheduled visit.
type UpdateScheduleRequest struct {
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
}

// ScheduleListQuery filters the visit schedule list.
type ScheduleListQuery struct {
	SupplierID int    `form:"supplier_id"`
	Status     string `form:"status"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}
