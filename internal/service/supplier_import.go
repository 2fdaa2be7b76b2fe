package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// SupplierImportService bulk-loads suppliers (and their vehicles) from an
// Excel workbook produced from the downloadable template.
type SupplierImportService struct {
	db *gorm.DB

	mu    sync.RWMutex
	tasks map[string]*model.SupplierImportResult
}

// NewSupplierImportService creates a new import service.
func NewSupplierImportService(db *gorm.DB) *SupplierImportService {
	return &SupplierImportService{
		db:    db,
		tasks: make(map[string]*model.SupplierImportResult),
	}
}

// GenerateTemplate builds the import template workbook with a header row,
// an example row, and a hints sheet.
func (s *SupplierImportService) GenerateTemplate() (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Suppliers"
	f.SetSheetName("Sheet1", sheet)

	columns := model.GetSupplierImportTemplateColumns()
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		name := col.Name
		if col.Required {
			name = name + " *"
		}
		f.SetCellValue(sheet, cell, name)

		example, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, example, col.Example)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, colName, colName, 20)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	hints := "Hints"
	f.NewSheet(hints)
	f.SetCellValue(hints, "A1", "Column")
	f.SetCellValue(hints, "B1", "Required")
	f.SetCellValue(hints, "C1", "Description")
	for i, col := range columns {
		row := i + 2
		f.SetCellValue(hints, fmt.Sprintf("A%d", row), col.Name)
		if col.Required {
			f.SetCellValue(hints, fmt.Sprintf("B%d", row), "yes")
		} else {
			f.SetCellValue(hints, fmt.Sprintf("B%d", row), "no")
		}
		f.SetCellValue(hints, fmt.Sprintf("C%d", row), col.Description)
	}
	f.SetColWidth(hints, "A", "A", 16)
	f.SetColWidth(hints, "C", "C", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write template: %w", err)
	}
	return buf, nil
}

// ParseExcel reads the uploaded workbook into rows, validating each row.
// Rows with problems come back with Error set; nothing is written.
func (s *SupplierImportService) ParseExcel(r io.Reader) ([]model.SupplierImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook has no data rows")
	}

	parsed := make([]model.SupplierImportRow, 0, len(rows)-1)
	seenCIN := make(map[string]int)

	for i, cells := range rows[1:] {
		rowNum := i + 2
		get := func(idx int) string {
			if idx < len(cells) {
				return strings.TrimSpace(cells[idx])
			}
			return ""
		}

		row := model.SupplierImportRow{
			RowNum:       rowNum,
			Name:         get(0),
			CIN:          get(1),
			Company:      get(2),
			Email:        get(3),
			Phone:        get(4),
			PlateNumber:  get(5),
			VehicleMake:  get(6),
			VehicleModel: get(7),
		}

		if row.Name == "" && row.CIN == "" {
			continue // blank row
		}

		switch {
		case row.Name == "":
			row.Error = "name is required"
		case row.CIN == "":
			row.Error = "cin is required"
		case seenCIN[row.CIN] != 0:
			row.Error = fmt.Sprintf("duplicate cin, already on row %d", seenCIN[row.CIN])
		case (row.VehicleMake != "" || row.VehicleModel != "") && row.PlateNumber == "":
			row.Error = "vehicle make/model given without a plate number"
		}
		if row.Error == "" {
			seenCIN[row.CIN] = rowNum
		}

		parsed = append(parsed, row)
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("workbook has no data rows")
	}
	return parsed, nil
}

// StartImport kicks off a background import of pre-parsed rows and returns
// a task id for polling.
func (s *SupplierImportService) StartImport(rows []model.SupplierImportRow, createdBy int) string {
	taskID := fmt.Sprintf("imp_%d", time.Now().UnixNano())

	result := &model.SupplierImportResult{
		TaskID:     taskID,
		Status:     "processing",
		TotalCount: len(rows),
	}
	s.mu.Lock()
	s.tasks[taskID] = result
	s.mu.Unlock()

	task := &model.SupplierImportTask{
		TaskID:     taskID,
		Status:     "processing",
		TotalCount: len(rows),
		CreatedBy:  createdBy,
	}
	if err := s.db.Create(task).Error; err != nil {
		log.Printf("[SupplierImport] failed to persist task %s: %v", taskID, err)
	}

	go s.runImport(taskID, task.ID, rows)
	return taskID
}

// GetTask returns the live state of an import task.
func (s *SupplierImportService) GetTask(taskID string) (*model.SupplierImportResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *result
	cp.Errors = append([]model.SupplierImportError(nil), result.Errors...)
	return &cp, true
}

func (s *SupplierImportService) runImport(taskID string, recordID uint, rows []model.SupplierImportRow) {
	var success, failed int
	var importErrors []model.SupplierImportError

	for i, row := range rows {
		if row.Error != "" {
			failed++
			importErrors = append(importErrors, model.SupplierImportError{
				RowNum: row.RowNum,
				Error:  row.Error,
			})
			s.updateProgress(taskID, success, failed, i+1, len(rows), importErrors)
			continue
		}

		if err := s.importRow(&row); err != nil {
			failed++
			importErrors = append(importErrors, model.SupplierImportError{
				RowNum: row.RowNum,
				Value:  row.CIN,
				Error:  err.Error(),
			})
		} else {
			success++
		}
		s.updateProgress(taskID, success, failed, i+1, len(rows), importErrors)
	}

	status := "completed"
	if success == 0 && failed > 0 {
		status = "failed"
	}

	s.mu.Lock()
	if result, ok := s.tasks[taskID]; ok {
		result.Status = status
		result.Progress = 100
	}
	s.mu.Unlock()

	now := time.Now()
	errPayload := model.JSONMap{}
	if len(importErrors) > 0 {
		errPayload["rows"] = importErrors
	}
	s.db.Model(&model.SupplierImportTask{}).Where("id = ?", recordID).Updates(map[string]interface{}{
		"status":        status,
		"success_count": success,
		"error_count":   failed,
		"errors":        errPayload,
		"completed_at":  &now,
	})

	log.Printf("[SupplierImport] task %s done: %d ok, %d failed", taskID, success, failed)
}

func (s *SupplierImportService) importRow(row *model.SupplierImportRow) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Supplier
		err := tx.Where("cin = ?", row.CIN).First(&existing).Error
		if err == nil {
			return fmt.Errorf("supplier with cin %s already exists", row.CIN)
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		supplier := model.Supplier{
			Name:    row.Name,
			CIN:     row.CIN,
			Company: row.Company,
			Email:   row.Email,
			Phone:   row.Phone,
			Status:  "active",
		}
		if err := tx.Create(&supplier).Error; err != nil {
			return err
		}

		if row.PlateNumber != "" {
			vehicle := model.Vehicle{
				PlateNumber: row.PlateNumber,
				Make:        row.VehicleMake,
				Model:       row.VehicleModel,
				SupplierID:  &supplier.ID,
			}
			if err := tx.Create(&vehicle).Error; err != nil {
				return fmt.Errorf("vehicle plate %s: %w", row.PlateNumber, err)
			}
		}
		return nil
	})
}

func (s *SupplierImportService) updateProgress(taskID string, success, failed, done, total int, errs []model.SupplierImportError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.tasks[taskID]
	if !ok {
		return
	}
	result.SuccessCount = success
	result.ErrorCount = failed
	result.Errors = errs
	if total > 0 {
		result.Progress = done * 100 / total
	}
}

// CleanupTasks drops finished in-memory tasks older than the cutoff; the
// database rows remain for audit.
func (s *SupplierImportService) CleanupTasks(ctx context.Context, before time.Time) {
	var stale []model.SupplierImportTask
	if err := s.db.WithContext(ctx).
		Where("completed_at IS NOT NULL AND completed_at < ?", before).
		Find(&stale).Error; err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range stale {
		delete(s.tasks, t.TaskID)
	}
}
