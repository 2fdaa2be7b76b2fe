package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"opengate/api/internal/model"
)

// ExportService renders access logs and presence snapshots as Excel
// workbooks for the console's export buttons.
type ExportService struct{}

// NewExportService creates a new export service.
func NewExportService() *ExportService {
	return &ExportService{}
}

// AccessLogsExcel renders the given logs to an xlsx workbook, newest rows
// in the order given by the caller.
func (s *ExportService) AccessLogsExcel(logs []model.AccessLog, title string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Access Logs"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Person", "Type", "Date", "Entry Time", "Exit Time", "Status", "Parking", "Notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, cell, h)
	}

	if title == "" {
		title = fmt.Sprintf("Access Logs - %s", time.Now().Format("2006-01-02"))
	}
	f.SetCellValue(sheet, "A1", title)
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.MergeCell(sheet, "A1", endCell)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err == nil {
		f.SetCellStyle(sheet, "A2", endCell[:1]+"2", headerStyle)
	}

	for i, l := range logs {
		row := i + 3
		values := []interface{}{
			l.ID,
			l.PersonName,
			string(l.PersonType),
			l.LogDate,
			formatLogTime(l.EntryTime),
			formatLogTime(l.ExitTime),
			l.Status,
			l.ParkingLocation,
			l.Notes,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "B", "B", 24)
	f.SetColWidth(sheet, "D", "F", 18)
	f.SetColWidth(sheet, "I", "I", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

// PresenceExcel renders a reconciled presence snapshot as a workbook.
func (s *ExportService) PresenceExcel(rows []model.PresenceRow, month string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Presence"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Person", "Type", "Identifier", "Status", "Latest Entry", "Latest Exit", "Visits " + month, "Plate"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		row := i + 2
		status := r.CurrentStatus
		if status == "" {
			status = "unknown"
		}
		plate := ""
		if r.Vehicle != nil {
			plate = r.Vehicle.PlateNumber
		}
		visits := interface{}(nil)
		if r.PersonType == model.PersonTypeSupplier {
			visits = r.MonthlyVisitCount
		}
		values := []interface{}{
			r.Name,
			string(r.PersonType),
			r.Identifier,
			status,
			formatLogTime(r.LatestEntryTime),
			formatLogTime(r.LatestExitTime),
			visits,
			plate,
		}
		for j, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "E", "F", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func formatLogTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
