package model

import (
	"time"
)

// SupplierImportTask tracks a bulk supplier import from Excel.
type SupplierImportTask struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	TaskID       string     `json:"task_id" gorm:"uniqueIndex;size:64"`
	Status       string     `json:"status" gorm:"size:20"` // pending, processing, completed, failed
	TotalCount   int        `json:"total_count"`
	SuccessCount int        `json:"success_count"`
	ErrorCount   int        `json:"error_count"`
	Errors       JSONMap    `json:"errors" gorm:"type:jsonb"`
	CreatedBy    int        `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func (SupplierImportTask) TableName() string {
	return "supplier_import_tasks"
}

// SupplierImportRow is one parsed Excel row.
type SupplierImportRow struct {
	RowNum       int    `json:"row_num"`
	Name         string `json:"name"`
	CIN          string `json:"cin"`
	Company      string `json:"company"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PlateNumber  string `json:"plate_number"`
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	Error        string `json:"error,omitempty"`
}

// SupplierImportResult is the state of an import task as reported to the
// console while the import runs.
type SupplierImportResult struct {
	TaskID       string                `json:"task_id"`
	Status       string                `json:"status"`
	TotalCount   int                   `json:"total_count"`
	SuccessCount int                   `json:"success_count"`
	ErrorCount   int                   `json:"error_count"`
	Errors       []SupplierImportError `json:"errors,omitempty"`
	Progress     int                   `json:"progress"` // 0-100
}

// SupplierImportError is one failed row with its reason.
type SupplierImportError struct {
	RowNum int    `json:"row_num"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error"`
}

// ImportTemplateColumn defines one column of the import template sheet.
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

// GetSupplierImportTemplateColumns returns the template column definitions.
func GetSupplierImportTemplateColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{
			Name:        "Name",
			Key:         "name",
			Required:    true,
			Description: "Supplier full name",
			Example:     "Ahmed Ben Salah",
		},
		{
			Name:        "CIN",
			Key:         "cin",
			Required:    true,
			Description: "National id card number, unique per supplier",
			Example:     "09845712",
		},
		{
			Name:        "Company",
			Key:         "company",
			Required:    false,
			Description: "Employer / company name",
			Example:     "Sotrapil",
		},
		{
			Name:        "Email",
			Key:         "email",
			Required:    false,
			Description: "Contact email",
			Example:     "ahmed@sotrapil.tn",
		},
		{
			Name:        "Phone",
			Key:         "phone",
			Required:    false,
			Description: "Contact phone",
			Example:     "+216 22 345 678",
		},
		{
			Name:        "Plate Number",
			Key:         "plate_number",
			Required:    false,
			Description: "Vehicle plate, leave empty if the supplier has no vehicle",
			Example:     "185 TU 2214",
		},
		{
			Name:        "Vehicle Make",
			Key:         "vehicle_make",
			Required:    false,
			Description: "Vehicle make (only with a plate number)",
			Example:     "Renault",
		},
		{
			Name:        "Vehicle Model",
			Key:         "vehicle_model",
			Required:    false,
			Description: "Vehicle model (only with a plate number)",
			Example:     "Kangoo",
		},
	}
}
