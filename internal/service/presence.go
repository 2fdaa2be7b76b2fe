package service

import (
	"log"
	"time"

	"opengate/api/internal/model"
)

// PersonKey identifies a person across roster collections. The same numeric
// id under two types is two distinct keys.
type PersonKey struct {
	ID   int
	Type model.PersonType
}

// PresenceInput is everything the reconciler needs for one pass. It is
// assembled by AccessLogService.Snapshot; tests build it directly.
type PresenceInput struct {
	Suppliers  []model.Supplier
	Personnel  []model.Personnel
	ActiveLogs []model.AccessLog
	// RecentLogs is a bounded history window, newest first by log date.
	// It only needs to be deep enough to find each person's latest
	// completed entry/exit pair.
	RecentLogs []model.AccessLog
	// MonthlyCounts is the server-side per-supplier aggregate for Month.
	// When nil the reconciler derives counts by scanning RecentLogs, which
	// may undercount if history exceeds the window. The two sources are
	// never mixed within one view.
	MonthlyCounts map[PersonKey]int
	// Month anchors the monthly visit window.
	Month time.Time
}

// Reconcile derives per-person gate presence from raw log history. It is a
// pure function of its input: no I/O, no clock reads, deterministic row
// order (suppliers in roster order, then personnel).
func Reconcile(in PresenceInput) []model.PresenceRow {
	rows := make([]model.PresenceRow, 0, len(in.Suppliers)+len(in.Personnel))
	index := make(map[PersonKey]int, len(in.Suppliers)+len(in.Personnel))

	for i := range in.Suppliers {
		s := &in.Suppliers[i]
		key := PersonKey{ID: s.ID, Type: model.PersonTypeSupplier}
		index[key] = len(rows)
		rows = append(rows, model.PresenceRow{
			PersonID:       s.ID,
			PersonType:     model.PersonTypeSupplier,
			Name:           s.Name,
			Identifier:     s.CIN,
			CanCheckIn:     true,
			Vehicle:        s.Vehicle,
			ScheduledVisit: s.ScheduledVisit,
		})
	}
	for i := range in.Personnel {
		p := &in.Personnel[i]
		key := PersonKey{ID: p.ID, Type: model.PersonTypePersonnel}
		index[key] = len(rows)
		rows = append(rows, model.PresenceRow{
			PersonID:   p.ID,
			PersonType: model.PersonTypePersonnel,
			Name:       p.Name,
			Identifier: p.Matricule,
			CanCheckIn: true,
			Vehicle:    p.Vehicle,
		})
	}

	// Step 1: active logs put their person inside. A log referencing a
	// person absent from the roster is dropped, never fatal.
	for i := range in.ActiveLogs {
		l := &in.ActiveLogs[i]
		idx, ok := index[PersonKey{ID: l.PersonID, Type: l.PersonType}]
		if !ok {
			log.Printf("[Presence] log %d references unknown person (%d, %s), dropped", l.ID, l.PersonID, l.PersonType)
			continue
		}
		row := &rows[idx]
		if row.CurrentStatus == model.PresenceInside &&
			row.LatestEntryTime != nil && l.EntryTime != nil && !l.EntryTime.After(*row.LatestEntryTime) {
			continue // duplicate active log, keep the most recent entry
		}
		row.CurrentStatus = model.PresenceInside
		row.CanCheckIn = false
		row.CanCheckOut = true
		row.LatestEntryTime = l.EntryTime
		row.LatestExitTime = nil
	}

	// Step 2: everyone else gets their most recent completed record from
	// the history window, if any.
	latest := latestPerPerson(in.RecentLogs)
	for key, idx := range index {
		row := &rows[idx]
		if row.CurrentStatus == model.PresenceInside {
			continue
		}
		l, ok := latest[key]
		if !ok || l.Status != model.LogStatusExit {
			// No usable history: status stays empty, check-in allowed.
			continue
		}
		row.CurrentStatus = model.PresenceOutside
		row.LatestEntryTime = l.EntryTime
		row.LatestExitTime = l.ExitTime
	}

	// Step 3: monthly visit counts, suppliers only.
	monthPrefix := in.Month.Format("2006-01")
	for i := range rows {
		row := &rows[i]
		if row.PersonType != model.PersonTypeSupplier {
			continue
		}
		key := PersonKey{ID: row.PersonID, Type: row.PersonType}
		if in.MonthlyCounts != nil {
			row.MonthlyVisitCount = in.MonthlyCounts[key]
			continue
		}
		for j := range in.RecentLogs {
			l := &in.RecentLogs[j]
			if l.PersonID == key.ID && l.PersonType == key.Type && len(l.LogDate) >= 7 && l.LogDate[:7] == monthPrefix {
				row.MonthlyVisitCount++
			}
		}
	}

	return rows
}

// latestPerPerson picks each person's most recent log from the window.
// Later log date wins; on equal dates the log with the latest non-empty
// entry or exit timestamp wins.
func latestPerPerson(logs []model.AccessLog) map[PersonKey]*model.AccessLog {
	latest := make(map[PersonKey]*model.AccessLog)
	for i := range logs {
		l := &logs[i]
		key := PersonKey{ID: l.PersonID, Type: l.PersonType}
		cur, ok := latest[key]
		if !ok || moreRecent(l, cur) {
			latest[key] = l
		}
	}
	return latest
}

func moreRecent(a, b *model.AccessLog) bool {
	if a.LogDate != b.LogDate {
		return a.LogDate > b.LogDate // YYYY-MM-DD compares lexically
	}
	at, bt := a.LatestTimestamp(), b.LatestTimestamp()
	if bt == nil {
		return at != nil
	}
	if at == nil {
		return false
	}
	return at.After(*bt)
}
