package model

import (
	"time"
)

// PersonType tags which roster collection a person belongs to. Identity
// across the access-control system is always the (person id, person type)
// pair; the same numeric id under both types is two different people.
type PersonType string

const (
	PersonTypeSupplier  PersonType = "supplier"
	PersonTypePersonnel PersonType = "personnel"
)

// Valid reports whether t is a known person type.
func (t PersonType) Valid() bool {
	return t == PersonTypeSupplier || t == PersonTypePersonnel
}

// Vehicle is a person's registered vehicle. A person has at most one;
// exactly one of SupplierID / PersonnelID is set.
type Vehicle struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	PlateNumber string    `json:"plate_number" gorm:"column:plate_number;type:varchar(20);not null;uniqueIndex"`
	Make        string    `json:"make,omitempty" gorm:"type:varchar(50)"`
	Model       string    `json:"model,omitempty" gorm:"type:varchar(50)"`
	Year        int       `json:"year,omitempty"`
	Color       string    `json:"color,omitempty" gorm:"type:varchar(20)"`
	SupplierID  *int      `json:"supplier_id,omitempty" gorm:"column:supplier_id;index"`
	PersonnelID *int      `json:"personnel_id,omitempty" gorm:"column:personnel_id;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:now()"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// Supplier is an external visitor tracked by CIN (national id card).
type Supplier struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	CIN       string    `json:"cin" gorm:"column:cin;type:varchar(20);not null;uniqueIndex"`
	Company   string    `json:"company,omitempty" gorm:"type:varchar(100)"`
	Email     string    `json:"email,omitempty" gorm:"type:varchar(100)"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(20)"`
	Status    string    `json:"status" gorm:"type:varchar(20);default:'active'"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:now()"`

	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:SupplierID"`

	// Pending visit for the current cycle, attached by the roster loader.
	ScheduledVisit *ScheduledVisit `json:"scheduled_visit,omitempty" gorm:"-"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

// Personnel is a factory employee tracked by matricule.
type Personnel struct {
	ID         int       `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null"`
	Matricule  string    `json:"matricule" gorm:"type:varchar(20);not null;uniqueIndex"`
	Department string    `json:"department,omitempty" gorm:"type:varchar(50)"`
	Email      string    `json:"email,omitempty" gorm:"type:varchar(100)"`
	Phone      string    `json:"phone,omitempty" gorm:"type:varchar(20)"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'active'"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null;default:now()"`

	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:PersonnelID"`
}

func (Personnel) TableName() string {
	return "leoni_personnel"
}

// VehicleInput is the embedded vehicle payload on roster create/update.
type VehicleInput struct {
	PlateNumber string `json:"plate_number" binding:"required"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	Color       string `json:"color"`
}

// CreateSupplierRequest creates a supplier, optionally with a vehicle.
type CreateSupplierRequest struct {
	Name    string        `json:"name" binding:"required"`
	CIN     string        `json:"cin" binding:"required"`
	Company string        `json:"company"`
	Email   string        `json:"email"`
	Phone   string        `json:"phone"`
	Vehicle *VehicleInput `json:"vehicle"`
}

// UpdateSupplierRequest updates a supplier. Empty fields are left unchanged.
type UpdateSupplierRequest struct {
	Name    string        `json:"name"`
	CIN     string        `json:"cin"`
	Company string        `json:"company"`
	Email   string        `json:"email"`
	Phone   string        `json:"phone"`
	Status  string        `json:"status"`
	Vehicle *VehicleInput `json:"vehicle"`
}

// SupplierListQuery filters the supplier list.
type SupplierListQuery struct {
	Name     string `form:"name"`
	CIN      string `form:"cin"`
	Company  string `form:"company"`
	Status   string `form:"status"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// CreatePersonnelRequest creates a personnel record.
type CreatePersonnelRequest struct {
	Name       string        `json:"name" binding:"required"`
	Matricule  string        `json:"matricule" binding:"required"`
	Department string        `json:"department"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Vehicle    *VehicleInput `json:"vehicle"`
}

// UpdatePersonnelRequest updates a personnel record.
type UpdatePersonnelRequest struct {
	Name       string        `json:"name"`
	Matricule  string        `json:"matricule"`
	Department string        `json:"department"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Status     string        `json:"status"`
	Vehicle    *VehicleInput `json:"vehicle"`
}

// PersonnelListQuery filters the personnel list.
type PersonnelListQuery struct {
	Name       string `form:"name"`
	Matricule  string `form:"matricule"`
	Department string `form:"department"`
	Status     string `form:"status"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}
