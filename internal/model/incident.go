package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Incident severity levels.
const (
	IncidentSeverityInfo     = "info"
	IncidentSeverityWarning  = "warning"
	IncidentSeverityCritical = "critical"
)

// Incident status values.
const (
	IncidentStatusOpen     = "open"
	IncidentStatusResolved = "resolved"
)

// Incident is a security incident reported from the gate (SOS role).
type Incident struct {
	ID          int         `json:"id" gorm:"primaryKey"`
	Title       string      `json:"title" gorm:"type:varchar(200);not null"`
	Description string      `json:"description,omitempty" gorm:"type:text"`
	Severity    string      `json:"severity" gorm:"type:varchar(20);not null;default:'info';index"`
	Location    string      `json:"location,omitempty" gorm:"type:varchar(100)"`
	PersonID    *int        `json:"person_id,omitempty" gorm:"column:person_id"`
	PersonType  *PersonType `json:"person_type,omitempty" gorm:"column:person_type;type:varchar(20)"`
	Details     JSONMap     `json:"details,omitempty" gorm:"type:jsonb"`
	Status      string      `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	ReportedBy  int         `json:"reported_by" gorm:"column:reported_by;not null"`
	ResolvedBy  *int        `json:"resolved_by,omitempty" gorm:"column:resolved_by"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	Resolution  string      `json:"resolution,omitempty" gorm:"type:text"`
	CreatedAt   time.Time   `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"not null;default:now()"`
}

func (Incident) TableName() string {
	return "incidents"
}

// JSONMap is a helper type for JSONB fields.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONMap: not bytes")
	}
	return json.Unmarshal(bytes, m)
}

// CreateIncidentRequest reports a new incident.
type CreateIncidentRequest struct {
	Title       string      `json:"title" binding:"required"`
	Description string      `json:"description"`
	Severity    string      `json:"severity"`
	Location    string      `json:"location"`
	PersonID    *int        `json:"person_id"`
	PersonType  *PersonType `json:"person_type"`
	Details     JSONMap     `json:"details"`
}

// UpdateIncidentRequest edits an open incident.
type UpdateIncidentRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Location    string  `json:"location"`
	Details     JSONMap `json:"details"`
}

// ResolveIncidentRequest closes an incident.
type ResolveIncidentRequest struct {
	Resolution string `json:"resolution"`
}

// IncidentListQuery filters the incident list.
type IncidentListQuery struct {
	Severity  string `form:"severity"`
	Status    string `form:"status"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Page      int    `form:"page,default=1"`
	PageSize  int    `form:"page_size,default=20"`
}

// IncidentMessage is the payload pushed to live console clients when an
// incident is reported or resolved.
type IncidentMessage struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status"`
	At       int64  `json:"at"`
}
