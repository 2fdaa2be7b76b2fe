package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opengate/api/internal/model"
)

func ts(value string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	if err != nil {
		panic(err)
	}
	return &t
}

func testRoster() ([]model.Supplier, []model.Personnel) {
	suppliers := []model.Supplier{
		{ID: 1, Name: "Ahmed Ben Salah", CIN: "09845712"},
		{ID: 2, Name: "Sonia Trabelsi", CIN: "11203394"},
	}
	personnel := []model.Personnel{
		{ID: 1, Name: "Karim Jouini", Matricule: "EMP-0042"},
	}
	return suppliers, personnel
}

func rowFor(t *testing.T, rows []model.PresenceRow, id int, pt model.PersonType) *model.PresenceRow {
	t.Helper()
	for i := range rows {
		if rows[i].PersonID == id && rows[i].PersonType == pt {
			return &rows[i]
		}
	}
	t.Fatalf("no row for (%d, %s)", id, pt)
	return nil
}

func TestReconcileEmptyHistory(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		Month:     time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local),
	})

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Empty(t, row.CurrentStatus)
		assert.True(t, row.CanCheckIn)
		assert.False(t, row.CanCheckOut)
		assert.Zero(t, row.MonthlyVisitCount)
	}
}

func TestReconcileRowOrder(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{Suppliers: suppliers, Personnel: personnel})

	require.Len(t, rows, 3)
	assert.Equal(t, model.PersonTypeSupplier, rows[0].PersonType)
	assert.Equal(t, 1, rows[0].PersonID)
	assert.Equal(t, model.PersonTypeSupplier, rows[1].PersonType)
	assert.Equal(t, 2, rows[1].PersonID)
	assert.Equal(t, model.PersonTypePersonnel, rows[2].PersonType)
}

func TestReconcileActiveLogMeansInside(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		ActiveLogs: []model.AccessLog{
			{ID: 10, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-01 08:00"), Status: model.LogStatusEntry, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	inside := rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Equal(t, model.PresenceInside, inside.CurrentStatus)
	assert.False(t, inside.CanCheckIn)
	assert.True(t, inside.CanCheckOut)
	assert.Equal(t, ts("2024-06-01 08:00"), inside.LatestEntryTime)
	assert.Nil(t, inside.LatestExitTime)

	other := rowFor(t, rows, 2, model.PersonTypeSupplier)
	assert.Empty(t, other.CurrentStatus)
	assert.True(t, other.CanCheckIn)
}

func TestReconcileCompletedLogMeansOutside(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		RecentLogs: []model.AccessLog{
			{ID: 11, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-01 08:00"), ExitTime: ts("2024-06-01 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	row := rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Equal(t, model.PresenceOutside, row.CurrentStatus)
	assert.True(t, row.CanCheckIn)
	assert.False(t, row.CanCheckOut)
	assert.Equal(t, ts("2024-06-01 17:00"), row.LatestExitTime)
}

func TestReconcileActiveLogWinsOverHistory(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		ActiveLogs: []model.AccessLog{
			{ID: 20, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-02 09:00"), Status: model.LogStatusEntry, LogDate: "2024-06-02"},
		},
		RecentLogs: []model.AccessLog{
			{ID: 11, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-01 08:00"), ExitTime: ts("2024-06-01 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	row := rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Equal(t, model.PresenceInside, row.CurrentStatus)
	assert.Equal(t, ts("2024-06-02 09:00"), row.LatestEntryTime)
	assert.Nil(t, row.LatestExitTime)
}

func TestReconcileLatestLogTieBreak(t *testing.T) {
	suppliers, personnel := testRoster()

	// Same log date: the later exit timestamp must win.
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		RecentLogs: []model.AccessLog{
			{ID: 30, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-03 07:00"), ExitTime: ts("2024-06-03 09:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-03"},
			{ID: 31, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-03 10:00"), ExitTime: ts("2024-06-03 16:30"),
				Status: model.LogStatusExit, LogDate: "2024-06-03"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	row := rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Equal(t, ts("2024-06-03 16:30"), row.LatestExitTime)

	// Different dates: later date wins regardless of list order.
	rows = Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		RecentLogs: []model.AccessLog{
			{ID: 41, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-05 08:00"), ExitTime: ts("2024-06-05 12:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-05"},
			{ID: 40, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-04 08:00"), ExitTime: ts("2024-06-04 18:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-04"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	row = rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Equal(t, ts("2024-06-05 12:00"), row.LatestExitTime)
}

func TestReconcileIdentityIsIDPlusType(t *testing.T) {
	// Supplier 1 and personnel 1 share a numeric id but are two people. An
	// active log typed personnel must not flip the supplier inside.
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		ActiveLogs: []model.AccessLog{
			{ID: 50, PersonID: 1, PersonType: model.PersonTypePersonnel,
				EntryTime: ts("2024-06-01 06:00"), Status: model.LogStatusEntry, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	supplier := rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Empty(t, supplier.CurrentStatus)
	assert.True(t, supplier.CanCheckIn)

	employee := rowFor(t, rows, 1, model.PersonTypePersonnel)
	assert.Equal(t, model.PresenceInside, employee.CurrentStatus)
}

func TestReconcileUnknownPersonDropped(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		ActiveLogs: []model.AccessLog{
			{ID: 60, PersonID: 999, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-01 08:00"), Status: model.LogStatusEntry, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.NotEqual(t, 999, row.PersonID)
		assert.NotEqual(t, model.PresenceInside, row.CurrentStatus)
	}
}

func TestReconcileMonthlyCountsFromAggregate(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		MonthlyCounts: map[PersonKey]int{
			{ID: 1, Type: model.PersonTypeSupplier}: 7,
		},
		// History that would yield a different count; the aggregate must win.
		RecentLogs: []model.AccessLog{
			{ID: 70, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-01 08:00"), ExitTime: ts("2024-06-01 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	assert.Equal(t, 7, rowFor(t, rows, 1, model.PersonTypeSupplier).MonthlyVisitCount)
	assert.Equal(t, 0, rowFor(t, rows, 2, model.PersonTypeSupplier).MonthlyVisitCount)
}

func TestReconcileMonthlyCountsFallbackScan(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		RecentLogs: []model.AccessLog{
			{ID: 80, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-01 08:00"), ExitTime: ts("2024-06-01 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-01"},
			{ID: 81, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-10 08:00"), ExitTime: ts("2024-06-10 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-10"},
			// Previous month, excluded from June.
			{ID: 82, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-05-20 08:00"), ExitTime: ts("2024-05-20 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-05-20"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	assert.Equal(t, 2, rowFor(t, rows, 1, model.PersonTypeSupplier).MonthlyVisitCount)
}

func TestReconcilePersonnelHaveNoMonthlyCount(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		RecentLogs: []model.AccessLog{
			{ID: 90, PersonID: 1, PersonType: model.PersonTypePersonnel,
				EntryTime: ts("2024-06-01 08:00"), ExitTime: ts("2024-06-01 17:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-01"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	assert.Zero(t, rowFor(t, rows, 1, model.PersonTypePersonnel).MonthlyVisitCount)
}

func TestReconcileIdempotent(t *testing.T) {
	suppliers, personnel := testRoster()
	in := PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		ActiveLogs: []model.AccessLog{
			{ID: 100, PersonID: 2, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-07 07:30"), Status: model.LogStatusEntry, LogDate: "2024-06-07"},
		},
		RecentLogs: []model.AccessLog{
			{ID: 101, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-06 08:00"), ExitTime: ts("2024-06-06 16:00"),
				Status: model.LogStatusExit, LogDate: "2024-06-06"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	}

	first := Reconcile(in)
	second := Reconcile(in)
	assert.Equal(t, first, second)
}

func TestReconcileDuplicateActiveLogsKeepLatestEntry(t *testing.T) {
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		ActiveLogs: []model.AccessLog{
			{ID: 110, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-08 06:00"), Status: model.LogStatusEntry, LogDate: "2024-06-08"},
			{ID: 111, PersonID: 1, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-08 09:15"), Status: model.LogStatusEntry, LogDate: "2024-06-08"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	row := rowFor(t, rows, 1, model.PersonTypeSupplier)
	assert.Equal(t, model.PresenceInside, row.CurrentStatus)
	assert.Equal(t, ts("2024-06-08 09:15"), row.LatestEntryTime)
}

func TestReconcileEntryOnlyHistoryLeavesStatusUnknown(t *testing.T) {
	// A window containing only an entry-status log that is not in the
	// active set (e.g. trimmed out elsewhere) must not render as outside.
	suppliers, personnel := testRoster()
	rows := Reconcile(PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		RecentLogs: []model.AccessLog{
			{ID: 120, PersonID: 2, PersonType: model.PersonTypeSupplier,
				EntryTime: ts("2024-06-09 08:00"), Status: model.LogStatusEntry, LogDate: "2024-06-09"},
		},
		Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local),
	})

	row := rowFor(t, rows, 2, model.PersonTypeSupplier)
	assert.Empty(t, row.CurrentStatus)
	assert.True(t, row.CanCheckIn)
	assert.False(t, row.CanCheckOut)
}
