package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// ErrIncidentResolved is returned when editing or re-resolving a closed
// incident.
var ErrIncidentResolved = errors.New("incident is already resolved")

// IncidentService owns security incident reports.
type IncidentService struct {
	db       *gorm.DB
	events   *JetStreamService
	webhooks *WebhookService
}

// NewIncidentService creates a new incident service. events and webhooks
// may be nil.
func NewIncidentService(db *gorm.DB, events *JetStreamService, webhooks *WebhookService) *IncidentService {
	return &IncidentService{db: db, events: events, webhooks: webhooks}
}

// Create records a new incident and notifies subscribers.
func (s *IncidentService) Create(ctx context.Context, req *model.CreateIncidentRequest, reportedBy int) (*model.Incident, error) {
	severity := req.Severity
	if severity == "" {
		severity = model.IncidentSeverityInfo
	}
	switch severity {
	case model.IncidentSeverityInfo, model.IncidentSeverityWarning, model.IncidentSeverityCritical:
	default:
		return nil, fmt.Errorf("invalid severity %q", severity)
	}
	if req.PersonType != nil && !req.PersonType.Valid() {
		return nil, fmt.Errorf("invalid person type %q", *req.PersonType)
	}

	incident := model.Incident{
		Title:       req.Title,
		Description: req.Description,
		Severity:    severity,
		Location:    req.Location,
		PersonID:    req.PersonID,
		PersonType:  req.PersonType,
		Details:     req.Details,
		Status:      model.IncidentStatusOpen,
		ReportedBy:  reportedBy,
	}
	if err := s.db.WithContext(ctx).Create(&incident).Error; err != nil {
		return nil, err
	}

	s.notify(&incident, model.WebhookEventIncidentCreated)
	return &incident, nil
}

// Get returns one incident.
func (s *IncidentService) Get(ctx context.Context, id int) (*model.Incident, error) {
	var incident model.Incident
	if err := s.db.WithContext(ctx).First(&incident, id).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

// List returns filtered, paginated incidents, newest first.
func (s *IncidentService) List(ctx context.Context, q *model.IncidentListQuery) ([]model.Incident, int64, error) {
	db := s.db.WithContext(ctx).Model(&model.Incident{})

	if q.Severity != "" {
		db = db.Where("severity = ?", q.Severity)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.StartDate != "" {
		db = db.Where("created_at >= ?", q.StartDate)
	}
	if q.EndDate != "" {
		db = db.Where("created_at <= ?", q.EndDate)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []model.Incident
	offset := (q.Page - 1) * q.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(q.PageSize).Find(&incidents).Error; err != nil {
		return nil, 0, err
	}
	return incidents, total, nil
}

// Update edits an open incident. Resolved incidents are immutable.
func (s *IncidentService) Update(ctx context.Context, id int, req *model.UpdateIncidentRequest) (*model.Incident, error) {
	var incident model.Incident
	if err := s.db.WithContext(ctx).First(&incident, id).Error; err != nil {
		return nil, err
	}
	if incident.Status == model.IncidentStatusResolved {
		return nil, ErrIncidentResolved
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Severity != "" {
		updates["severity"] = req.Severity
	}
	if req.Location != "" {
		updates["location"] = req.Location
	}
	if req.Details != nil {
		updates["details"] = req.Details
	}

	if err := s.db.WithContext(ctx).Model(&incident).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Resolve closes an incident and notifies subscribers.
func (s *IncidentService) Resolve(ctx context.Context, id int, resolution string, resolvedBy int) (*model.Incident, error) {
	var incident model.Incident
	if err := s.db.WithContext(ctx).First(&incident, id).Error; err != nil {
		return nil, err
	}
	if incident.Status == model.IncidentStatusResolved {
		return nil, ErrIncidentResolved
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      model.IncidentStatusResolved,
		"resolved_by": resolvedBy,
		"resolved_at": now,
		"resolution":  resolution,
		"updated_at":  now,
	}
	if err := s.db.WithContext(ctx).Model(&incident).Updates(updates).Error; err != nil {
		return nil, err
	}

	resolved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(resolved, model.WebhookEventIncidentResolved)
	return resolved, nil
}

// Stats returns the open/severity breakdown for the dashboard.
func (s *IncidentService) Stats(ctx context.Context) (map[string]interface{}, error) {
	var open, critical, today int64

	if err := s.db.WithContext(ctx).Model(&model.Incident{}).
		Where("status = ?", model.IncidentStatusOpen).Count(&open).Error; err != nil {
		return nil, err
	}
	s.db.WithContext(ctx).Model(&model.Incident{}).
		Where("status = ? AND severity = ?", model.IncidentStatusOpen, model.IncidentSeverityCritical).
		Count(&critical)
	s.db.WithContext(ctx).Model(&model.Incident{}).
		Where("DATE(created_at) = CURRENT_DATE").
		Count(&today)

	return map[string]interface{}{
		"open":          open,
		"open_critical": critical,
		"today":         today,
	}, nil
}

func (s *IncidentService) notify(incident *model.Incident, eventType model.WebhookEventType) {
	if s.events != nil {
		msg := model.IncidentMessage{
			ID:       incident.ID,
			Title:    incident.Title,
			Severity: incident.Severity,
			Location: incident.Location,
			Status:   incident.Status,
			At:       time.Now().UnixMilli(),
		}
		if err := s.events.PublishIncident(msg); err != nil {
			log.Printf("[Incident] failed to publish incident message: %v", err)
		}
	}
	if s.webhooks != nil {
		s.webhooks.TriggerAsync(string(eventType), incident)
	}
}
