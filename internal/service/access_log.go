package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// Transition failures surfaced to the console. The client's optimistic
// guard can be stale; the database decides, and these are what it says.
var (
	ErrAlreadyInside    = errors.New("person is already inside")
	ErrNotInside        = errors.New("person has no active entry")
	ErrInvalidTimeOrder = errors.New("exit time is before the entry time")
	ErrUnknownPerson    = errors.New("person not found in roster")
)

const (
	// recentLogWindow bounds the history fetch used to find each person's
	// latest completed entry/exit pair.
	recentLogWindow = 300

	statsCacheTTL     = time.Minute
	dashboardCacheKey = "opengate:stats:dashboard"
)

// AccessLogService owns the access log collection: loading the data the
// reconciler needs, recording check-ins and check-outs, and the log-derived
// statistics.
type AccessLogService struct {
	db       *gorm.DB
	redis    *redis.Client
	roster   *RosterService
	events   *JetStreamService
	webhooks *WebhookService
}

// NewAccessLogService creates a new access log service. redis, events and
// webhooks may be nil; the service degrades to uncached, unpublished
// operation.
func NewAccessLogService(db *gorm.DB, redisClient *redis.Client, roster *RosterService, events *JetStreamService, webhooks *WebhookService) *AccessLogService {
	return &AccessLogService{
		db:       db,
		redis:    redisClient,
		roster:   roster,
		events:   events,
		webhooks: webhooks,
	}
}

// CombineLocalDateTime builds a timestamp from a user-picked date and
// time-of-day in local time. Parsing through UTC shifts the calendar day
// for timezones behind it, so this must stay ParseInLocation.
func CombineLocalDateTime(date, timeOfDay string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, timeOfDay, err)
	}
	return t, nil
}

// Snapshot loads everything one reconciliation pass needs. A roster
// failure is fatal; log fetch failures degrade to empty collections, which
// the reconciler renders as everyone outside with unknown history.
func (s *AccessLogService) Snapshot(ctx context.Context) (PresenceInput, error) {
	suppliers, personnel, err := s.roster.LoadRoster(ctx)
	if err != nil {
		return PresenceInput{}, fmt.Errorf("load roster: %w", err)
	}

	now := time.Now()
	in := PresenceInput{
		Suppliers: suppliers,
		Personnel: personnel,
		Month:     now,
	}

	var active []model.AccessLog
	if err := s.db.WithContext(ctx).
		Where("entry_time IS NOT NULL AND exit_time IS NULL").
		Find(&active).Error; err != nil {
		log.Printf("[AccessLog] active log fetch failed, degrading: %v", err)
	} else {
		in.ActiveLogs = active
	}

	var recent []model.AccessLog
	if err := s.db.WithContext(ctx).
		Order("log_date DESC, created_at DESC").
		Limit(recentLogWindow).
		Find(&recent).Error; err != nil {
		log.Printf("[AccessLog] recent log fetch failed, degrading: %v", err)
	} else {
		in.RecentLogs = recent
	}

	// Server aggregate is authoritative; on failure leave the map nil and
	// let the reconciler fall back to scanning the window.
	counts, err := s.monthlyCounts(ctx, now)
	if err != nil {
		log.Printf("[AccessLog] monthly aggregate failed, falling back to window scan: %v", err)
	} else {
		in.MonthlyCounts = counts
	}

	return in, nil
}

// Presence returns the reconciled per-person view.
func (s *AccessLogService) Presence(ctx context.Context) ([]model.PresenceRow, error) {
	in, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Reconcile(in), nil
}

// CheckIn records an entry for one person. It refuses a second check-in
// while an active log exists and performs no mutation in that case.
func (s *AccessLogService) CheckIn(ctx context.Context, req *model.CheckInRequest) (*model.AccessLog, error) {
	if !req.PersonType.Valid() {
		return nil, fmt.Errorf("invalid person type %q", req.PersonType)
	}
	name, err := s.personName(ctx, req.PersonID, req.PersonType)
	if err != nil {
		return nil, err
	}

	entryTime, err := CombineLocalDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	logRow := model.AccessLog{
		PersonID:        req.PersonID,
		PersonType:      req.PersonType,
		PersonName:      name,
		VehicleID:       req.VehicleID,
		EntryTime:       &entryTime,
		Status:          model.LogStatusEntry,
		LogDate:         req.Date,
		Notes:           req.Notes,
		ParkingLocation: req.ParkingLocation,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active model.AccessLog
		err := tx.Where("person_id = ? AND person_type = ? AND entry_time IS NOT NULL AND exit_time IS NULL",
			req.PersonID, req.PersonType).First(&active).Error
		if err == nil {
			return ErrAlreadyInside
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&logRow).Error
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(model.GateEvent{
		Type:            model.GateEventCheckIn,
		LogID:           logRow.ID,
		PersonID:        logRow.PersonID,
		PersonType:      logRow.PersonType,
		PersonName:      logRow.PersonName,
		At:              entryTime,
		ParkingLocation: logRow.ParkingLocation,
	})
	s.invalidateStatsCache(ctx)
	return &logRow, nil
}

// CheckOut closes the person's active log. The log is patched exactly
// once: exit time set, status flipped to exit.
func (s *AccessLogService) CheckOut(ctx context.Context, req *model.CheckOutRequest) (*model.AccessLog, error) {
	if !req.PersonType.Valid() {
		return nil, fmt.Errorf("invalid person type %q", req.PersonType)
	}

	exitTime, err := CombineLocalDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	var active model.AccessLog
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("person_id = ? AND person_type = ? AND entry_time IS NOT NULL AND exit_time IS NULL",
			req.PersonID, req.PersonType).First(&active).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotInside
		}
		if err != nil {
			return err
		}
		if err := ValidateCheckOutTime(&active, exitTime); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"exit_time":  exitTime,
			"status":     model.LogStatusExit,
			"updated_at": time.Now(),
		}
		if req.Notes != "" {
			updates["notes"] = req.Notes
		}
		return tx.Model(&model.AccessLog{}).Where("id = ?", active.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	active.ExitTime = &exitTime
	active.Status = model.LogStatusExit

	s.publishEvent(model.GateEvent{
		Type:       model.GateEventCheckOut,
		LogID:      active.ID,
		PersonID:   active.PersonID,
		PersonType: active.PersonType,
		PersonName: active.PersonName,
		At:         exitTime,
	})
	s.invalidateStatsCache(ctx)
	return &active, nil
}

// ValidateCheckOutTime rejects an exit timestamp chronologically before
// the entry of the active log it would close.
func ValidateCheckOutTime(active *model.AccessLog, exitTime time.Time) error {
	if active.EntryTime != nil && exitTime.Before(*active.EntryTime) {
		return ErrInvalidTimeOrder
	}
	return nil
}

// List returns filtered, paginated logs.
func (s *AccessLogService) List(ctx context.Context, q *model.LogListQuery) ([]model.AccessLog, int64, error) {
	db := s.db.WithContext(ctx).Model(&model.AccessLog{})

	if q.PersonID > 0 {
		db = db.Where("person_id = ?", q.PersonID)
	}
	if q.PersonType != "" {
		db = db.Where("person_type = ?", q.PersonType)
	}
	switch q.Status {
	case "active":
		db = db.Where("entry_time IS NOT NULL AND exit_time IS NULL")
	case "":
	default:
		db = db.Where("status = ?", q.Status)
	}
	if q.StartDate != "" {
		db = db.Where("log_date >= ?", q.StartDate)
	}
	if q.EndDate != "" {
		db = db.Where("log_date <= ?", q.EndDate)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "log_date DESC, created_at DESC"
	if q.SortOrder == "asc" {
		order = "log_date ASC, created_at ASC"
	}

	var logs []model.AccessLog
	offset := (q.Page - 1) * q.PageSize
	if err := db.Order(order).Offset(offset).Limit(q.PageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// MonthlyStats returns per-supplier visit counts for a YYYY-MM month,
// cached for a minute.
func (s *AccessLogService) MonthlyStats(ctx context.Context, month string) ([]model.MonthlyVisitStat, error) {
	anchor, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}

	cacheKey := "opengate:stats:monthly:" + month
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var cached []model.MonthlyVisitStat
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	stats, err := s.monthlyStatsQuery(ctx, anchor)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if raw, err := json.Marshal(stats); err == nil {
			s.redis.Set(ctx, cacheKey, raw, statsCacheTTL)
		}
	}
	return stats, nil
}

func (s *AccessLogService) monthlyStatsQuery(ctx context.Context, anchor time.Time) ([]model.MonthlyVisitStat, error) {
	start := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	var stats []model.MonthlyVisitStat
	err := s.db.WithContext(ctx).Model(&model.AccessLog{}).
		Select("person_id, person_type, COUNT(*) as visit_count").
		Where("person_type = ? AND log_date >= ? AND log_date < ?",
			model.PersonTypeSupplier, start.Format("2006-01-02"), end.Format("2006-01-02")).
		Group("person_id, person_type").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	month := start.Format("2006-01")
	for i := range stats {
		stats[i].Month = month
	}
	return stats, nil
}

func (s *AccessLogService) monthlyCounts(ctx context.Context, anchor time.Time) (map[PersonKey]int, error) {
	stats, err := s.monthlyStatsQuery(ctx, anchor)
	if err != nil {
		return nil, err
	}
	counts := make(map[PersonKey]int, len(stats))
	for _, st := range stats {
		counts[PersonKey{ID: st.PersonID, Type: st.PersonType}] = st.VisitCount
	}
	return counts, nil
}

// DashboardStats returns the aggregate counters the dashboard renders,
// cached for a minute.
func (s *AccessLogService) DashboardStats(ctx context.Context) (map[string]interface{}, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, dashboardCacheKey).Result(); err == nil {
			var cached map[string]interface{}
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	today := time.Now().Format("2006-01-02")

	var insideNow int64
	s.db.WithContext(ctx).Model(&model.AccessLog{}).
		Where("entry_time IS NOT NULL AND exit_time IS NULL").
		Count(&insideNow)

	var todayEntries, todayExits int64
	s.db.WithContext(ctx).Model(&model.AccessLog{}).
		Where("log_date = ? AND entry_time IS NOT NULL", today).
		Count(&todayEntries)
	s.db.WithContext(ctx).Model(&model.AccessLog{}).
		Where("log_date = ? AND exit_time IS NOT NULL", today).
		Count(&todayExits)

	var vehiclesOnSite int64
	s.db.WithContext(ctx).Model(&model.AccessLog{}).
		Where("entry_time IS NOT NULL AND exit_time IS NULL AND vehicle_id IS NOT NULL").
		Count(&vehiclesOnSite)

	var openIncidents int64
	s.db.WithContext(ctx).Model(&model.Incident{}).
		Where("status = ?", model.IncidentStatusOpen).
		Count(&openIncidents)

	stats := map[string]interface{}{
		"inside_now":      insideNow,
		"today_entries":   todayEntries,
		"today_exits":     todayExits,
		"vehicles_onsite": vehiclesOnSite,
		"open_incidents":  openIncidents,
	}

	if s.redis != nil {
		if raw, err := json.Marshal(stats); err == nil {
			s.redis.Set(ctx, dashboardCacheKey, raw, statsCacheTTL)
		}
	}
	return stats, nil
}

func (s *AccessLogService) personName(ctx context.Context, id int, t model.PersonType) (string, error) {
	switch t {
	case model.PersonTypeSupplier:
		supplier, err := s.roster.FindSupplier(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnknownPerson
		}
		if err != nil {
			return "", err
		}
		return supplier.Name, nil
	default:
		person, err := s.roster.FindPersonnel(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnknownPerson
		}
		if err != nil {
			return "", err
		}
		return person.Name, nil
	}
}

func (s *AccessLogService) publishEvent(ev model.GateEvent) {
	if s.events != nil {
		if err := s.events.PublishGateEvent(ev); err != nil {
			log.Printf("[AccessLog] failed to publish gate event: %v", err)
		}
	}
	if s.webhooks != nil {
		eventType := model.WebhookEventCheckIn
		if ev.Type == model.GateEventCheckOut {
			eventType = model.WebhookEventCheckOut
		}
		s.webhooks.TriggerAsync(string(eventType), ev)
	}
}

func (s *AccessLogService) invalidateStatsCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, dashboardCacheKey)
}
