package model

import (
	"time"
)

// Access log status values. A log is created as "entry" by check-in and
// flipped to "exit" exactly once by the matching check-out. Logs are never
// deleted or mutated again after that.
const (
	LogStatusEntry = "entry"
	LogStatusExit  = "exit"
)

// AccessLog is one gate passage record for a person.
type AccessLog struct {
	ID              int        `json:"id" gorm:"primaryKey"`
	PersonID        int        `json:"person_id" gorm:"column:person_id;not null;index:idx_logs_person"`
	PersonType      PersonType `json:"person_type" gorm:"column:person_type;type:varchar(20);not null;index:idx_logs_person"`
	PersonName      string     `json:"person_name,omitempty" gorm:"column:person_name;type:varchar(100)"`
	VehicleID       *int       `json:"vehicle_id,omitempty" gorm:"column:vehicle_id"`
	EntryTime       *time.Time `json:"entry_time,omitempty" gorm:"column:entry_time"`
	ExitTime        *time.Time `json:"exit_time,omitempty" gorm:"column:exit_time"`
	Status          string     `json:"status" gorm:"type:varchar(10);not null;index"`
	LogDate         string     `json:"log_date" gorm:"column:log_date;type:date;not null;index"` // YYYY-MM-DD
	Notes           string     `json:"notes,omitempty" gorm:"type:text"`
	ParkingLocation string     `json:"parking_location,omitempty" gorm:"column:parking_location;type:varchar(50)"`
	CreatedAt       time.Time  `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"not null;default:now()"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}

// IsActive reports whether the log denotes a person currently inside:
// entry recorded, no exit yet.
func (l *AccessLog) IsActive() bool {
	return l.EntryTime != nil && l.ExitTime == nil
}

// LatestTimestamp returns the most recent non-empty timestamp on the log,
// used as the tie-break when two logs share a log date.
func (l *AccessLog) LatestTimestamp() *time.Time {
	if l.ExitTime != nil {
		if l.EntryTime == nil || l.ExitTime.After(*l.EntryTime) {
			return l.ExitTime
		}
	}
	return l.EntryTime
}

// CheckInRequest records an entry. Date and time-of-day are combined in
// local time by the service; they are never parsed as UTC.
type CheckInRequest struct {
	PersonID        int        `json:"person_id" binding:"required"`
	PersonType      PersonType `json:"person_type" binding:"required"`
	VehicleID       *int       `json:"vehicle_id"`
	Date            string     `json:"date" binding:"required"` // YYYY-MM-DD
	Time            string     `json:"time" binding:"required"` // HH:MM
	Notes           string     `json:"notes"`
	ParkingLocation string     `json:"parking_location"`
}

// CheckOutRequest closes the person's active log.
type CheckOutRequest struct {
	PersonID   int        `json:"person_id" binding:"required"`
	PersonType PersonType `json:"person_type" binding:"required"`
	Date       string     `json:"date" binding:"required"` // YYYY-MM-DD
	Time       string     `json:"time" binding:"required"` // HH:MM
	Notes      string     `json:"notes"`
}

// LogListQuery filters the access log list.
type LogListQuery struct {
	PersonID   int    `form:"person_id"`
	PersonType string `form:"person_type"`
	Status     string `form:"status"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	SortOrder  string `form:"sort_order,default=desc"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}

// Presence status values on a reconciled row. An empty status means the
// person has no usable log history; they may check in but not out.
const (
	PresenceInside  = "inside"
	PresenceOutside = "outside"
)

// PresenceRow is one person's reconciled gate state. Derived, never stored;
// rebuilt in full from roster plus logs on every refresh.
type PresenceRow struct {
	PersonID          int             `json:"person_id"`
	PersonType        PersonType      `json:"person_type"`
	Name              string          `json:"name"`
	Identifier        string          `json:"identifier"` // CIN or matricule
	CurrentStatus     string          `json:"current_status"`
	CanCheckIn        bool            `json:"can_check_in"`
	CanCheckOut       bool            `json:"can_check_out"`
	MonthlyVisitCount int             `json:"monthly_visit_count"`
	LatestEntryTime   *time.Time      `json:"latest_entry_time,omitempty"`
	LatestExitTime    *time.Time      `json:"latest_exit_time,omitempty"`
	Vehicle           *Vehicle        `json:"vehicle,omitempty"`
	ScheduledVisit    *ScheduledVisit `json:"scheduled_visit,omitempty"`
}

// MonthlyVisitStat is one supplier's visit count for a calendar month,
// aggregated server-side.
type MonthlyVisitStat struct {
	PersonID   int        `json:"person_id" gorm:"column:person_id"`
	PersonType PersonType `json:"person_type" gorm:"column:person_type"`
	Month      string     `json:"month" gorm:"column:month"` // YYYY-MM
	VisitCount int        `json:"visit_count" gorm:"column:visit_count"`
}

// Gate event types published on every accepted transition.
const (
	GateEventCheckIn  = "check_in"
	GateEventCheckOut = "check_out"
)

// GateEvent is the message published to the event stream and pushed to
// live console clients when a check-in or check-out is accepted.
type GateEvent struct {
	Type            string     `json:"type"`
	LogID           int        `json:"log_id"`
	PersonID        int        `json:"person_id"`
	PersonType      PersonType `json:"person_type"`
	PersonName      string     `json:"person_name,omitempty"`
	At              time.Time  `json:"at"`
	ParkingLocation string     `json:"parking_location,omitempty"`
}
