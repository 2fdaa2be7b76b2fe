package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"opengate/api/internal/model"
)

func TestAccessLogsExcel(t *testing.T) {
	s := NewExportService()
	logs := []model.AccessLog{
		{ID: 1, PersonName: "Ahmed Ben Salah", PersonType: model.PersonTypeSupplier,
			LogDate: "2024-06-01", EntryTime: ts("2024-06-01 08:00"), ExitTime: ts("2024-06-01 17:00"),
			Status: model.LogStatusExit, ParkingLocation: "P2"},
		{ID: 2, PersonName: "Karim Jouini", PersonType: model.PersonTypePersonnel,
			LogDate: "2024-06-02", EntryTime: ts("2024-06-02 07:30"),
			Status: model.LogStatusEntry},
	}

	buf, err := s.AccessLogsExcel(logs, "June export")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Access Logs", "A1")
	require.NoError(t, err)
	assert.Equal(t, "June export", title)

	rows, err := f.GetRows("Access Logs")
	require.NoError(t, err)
	require.Len(t, rows, 4) // title + header + 2 data rows

	assert.Equal(t, "Person", rows[1][1])
	assert.Equal(t, "Ahmed Ben Salah", rows[2][1])
	assert.Equal(t, "2024-06-01 08:00", rows[2][4])
	assert.Equal(t, "2024-06-01 17:00", rows[2][5])
	assert.Equal(t, "Karim Jouini", rows[3][1])
	// Still inside: no exit cell.
	assert.Equal(t, "2024-06-02 07:30", rows[3][4])
}

func TestAccessLogsExcelDefaultTitle(t *testing.T) {
	s := NewExportService()

	buf, err := s.AccessLogsExcel(nil, "")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Access Logs", "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "Access Logs - ")
}

func TestPresenceExcel(t *testing.T) {
	s := NewExportService()
	rows := []model.PresenceRow{
		{PersonID: 1, PersonType: model.PersonTypeSupplier, Name: "Ahmed Ben Salah",
			Identifier: "09845712", CurrentStatus: model.PresenceInside,
			LatestEntryTime: ts("2024-06-01 08:00"), MonthlyVisitCount: 4,
			Vehicle: &model.Vehicle{PlateNumber: "185 TU 2214"}},
		{PersonID: 1, PersonType: model.PersonTypePersonnel, Name: "Karim Jouini",
			Identifier: "EMP-0042"},
	}

	buf, err := s.PresenceExcel(rows, "2024-06")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Presence")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Visits 2024-06", got[0][6])

	assert.Equal(t, "Ahmed Ben Salah", got[1][0])
	assert.Equal(t, string(model.PresenceInside), got[1][3])
	assert.Equal(t, "4", got[1][6])
	assert.Equal(t, "185 TU 2214", got[1][7])

	// No presence history renders as unknown, and personnel carry no visit
	// count.
	assert.Equal(t, "Karim Jouini", got[2][0])
	assert.Equal(t, "unknown", got[2][3])
}
