package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"opengate/api/internal/model"
)

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	header := []string{"Name", "CIN", "Company", "Email", "Phone", "Plate Number", "Vehicle Make", "Vehicle Model"}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, h)
	}
	for r, cols := range rows {
		for c, v := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue("Sheet1", cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestParseExcelValidRows(t *testing.T) {
	s := NewSupplierImportService(nil)
	r := buildWorkbook(t, [][]string{
		{"Ahmed Ben Salah", "09845712", "Translog", "ahmed@translog.tn", "21655123456", "123 TUN 4567", "Renault", "Kangoo"},
		{"Sonia Trabelsi", "11203394", "", "", "", "", "", ""},
	})

	rows, err := s.ParseExcel(r)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Empty(t, rows[0].Error)
	assert.Equal(t, 2, rows[0].RowNum)
	assert.Equal(t, "Ahmed Ben Salah", rows[0].Name)
	assert.Equal(t, "09845712", rows[0].CIN)
	assert.Equal(t, "123 TUN 4567", rows[0].PlateNumber)
	assert.Equal(t, "Renault", rows[0].VehicleMake)

	assert.Empty(t, rows[1].Error)
	assert.Equal(t, "Sonia Trabelsi", rows[1].Name)
}

func TestParseExcelValidation(t *testing.T) {
	s := NewSupplierImportService(nil)
	r := buildWorkbook(t, [][]string{
		{"", "09845712", "", "", "", "", "", ""},                      // missing name
		{"Sonia Trabelsi", "", "", "", "", "", "", ""},                // missing cin
		{"Ahmed Ben Salah", "11203394", "", "", "", "", "", ""},       // ok
		{"Imposter", "11203394", "", "", "", "", "", ""},              // duplicate cin
		{"Karim Jouini", "22334455", "", "", "", "", "Peugeot", "Partner"}, // vehicle without plate
	})

	rows, err := s.ParseExcel(r)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Contains(t, rows[0].Error, "name is required")
	assert.Contains(t, rows[1].Error, "cin is required")
	assert.Empty(t, rows[2].Error)
	assert.Contains(t, rows[3].Error, "duplicate cin")
	assert.Contains(t, rows[3].Error, "row 4")
	assert.Contains(t, rows[4].Error, "plate number")
}

func TestParseExcelSkipsBlankRows(t *testing.T) {
	s := NewSupplierImportService(nil)
	r := buildWorkbook(t, [][]string{
		{"Ahmed Ben Salah", "09845712", "", "", "", "", "", ""},
		{"", "", "", "", "", "", "", ""},
		{"Sonia Trabelsi", "11203394", "", "", "", "", "", ""},
	})

	rows, err := s.ParseExcel(r)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].RowNum)
	assert.Equal(t, 4, rows[1].RowNum)
}

func TestParseExcelEmptyWorkbook(t *testing.T) {
	s := NewSupplierImportService(nil)

	_, err := s.ParseExcel(buildWorkbook(t, nil))
	assert.Error(t, err)
}

func TestTemplateRoundTrip(t *testing.T) {
	s := NewSupplierImportService(nil)

	buf, err := s.GenerateTemplate()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "Suppliers", f.GetSheetName(0))

	rows, err := f.GetRows("Suppliers")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)

	columns := model.GetSupplierImportTemplateColumns()
	require.Len(t, rows[0], len(columns))
	for i, col := range columns {
		assert.Contains(t, rows[0][i], col.Name)
		if col.Required {
			assert.Contains(t, rows[0][i], "*")
		}
	}

	// The template's example row parses cleanly.
	parsed, err := s.ParseExcel(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Empty(t, parsed[0].Error)

	hints, err := f.GetRows("Hints")
	require.NoError(t, err)
	assert.Len(t, hints, len(columns)+1)
}
