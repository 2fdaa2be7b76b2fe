package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opengate/api/internal/model"
)

func TestCombineLocalDateTime(t *testing.T) {
	got, err := CombineLocalDateTime("2024-06-01", "08:00")
	require.NoError(t, err)

	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.June, got.Month())
	assert.Equal(t, 1, got.Day())
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 0, got.Minute())
	// The calendar day the operator picked must survive, which means the
	// value is anchored to the server's zone, not UTC.
	assert.Equal(t, time.Local, got.Location())
}

func TestCombineLocalDateTimeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		date string
		tod  string
	}{
		{"empty", "", ""},
		{"bad date", "01/06/2024", "08:00"},
		{"bad time", "2024-06-01", "8am"},
		{"seconds not allowed", "2024-06-01", "08:00:30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CombineLocalDateTime(tc.date, tc.tod)
			assert.Error(t, err)
		})
	}
}

func TestValidateCheckOutTime(t *testing.T) {
	active := &model.AccessLog{EntryTime: ts("2024-06-01 08:00")}

	assert.NoError(t, ValidateCheckOutTime(active, *ts("2024-06-01 17:00")))
	assert.NoError(t, ValidateCheckOutTime(active, *ts("2024-06-01 08:00")))

	err := ValidateCheckOutTime(active, *ts("2024-06-01 07:30"))
	assert.ErrorIs(t, err, ErrInvalidTimeOrder)

	// Overnight shift: next-day exit is fine.
	assert.NoError(t, ValidateCheckOutTime(active, *ts("2024-06-02 02:00")))
}

func TestValidateCheckOutTimeNilEntry(t *testing.T) {
	assert.NoError(t, ValidateCheckOutTime(&model.AccessLog{}, *ts("2024-06-01 07:00")))
}
