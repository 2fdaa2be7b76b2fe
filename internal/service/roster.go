package service

import (
	"context"

	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// RosterService loads the combined set of people eligible for access
// tracking: suppliers and personnel, each with at most one vehicle, and for
// suppliers the pending scheduled visit of the current cycle.
type RosterService struct {
	db *gorm.DB
}

// NewRosterService creates a new roster service.
func NewRosterService(db *gorm.DB) *RosterService {
	return &RosterService{db: db}
}

// LoadRoster fetches both roster collections. A failure here is fatal to
// the presence view; there is nothing to reconcile without a roster.
func (s *RosterService) LoadRoster(ctx context.Context) ([]model.Supplier, []model.Personnel, error) {
	var suppliers []model.Supplier
	if err := s.db.WithContext(ctx).Preload("Vehicle").
		Where("status = ?", "active").
		Order("id").
		Find(&suppliers).Error; err != nil {
		return nil, nil, err
	}

	var personnel []model.Personnel
	if err := s.db.WithContext(ctx).Preload("Vehicle").
		Where("status = ?", "active").
		Order("id").
		Find(&personnel).Error; err != nil {
		return nil, nil, err
	}

	s.attachPendingVisits(ctx, suppliers)
	return suppliers, personnel, nil
}

// attachPendingVisits sets each supplier's next pending visit, if any.
// Visit lookup failures degrade to rosters without schedule info.
func (s *RosterService) attachPendingVisits(ctx context.Context, suppliers []model.Supplier) {
	if len(suppliers) == 0 {
		return
	}
	ids := make([]int, 0, len(suppliers))
	for i := range suppliers {
		ids = append(ids, suppliers[i].ID)
	}

	var visits []model.ScheduledVisit
	if err := s.db.WithContext(ctx).
		Where("supplier_id IN ? AND status = ?", ids, model.VisitStatusPending).
		Order("visit_date, visit_time").
		Find(&visits).Error; err != nil {
		return
	}

	bySupplier := make(map[int]*model.ScheduledVisit, len(visits))
	for i := range visits {
		v := &visits[i]
		if _, ok := bySupplier[v.SupplierID]; !ok {
			bySupplier[v.SupplierID] = v
		}
	}
	for i := range suppliers {
		suppliers[i].ScheduledVisit = bySupplier[suppliers[i].ID]
	}
}

// FindSupplier returns the supplier with the given id, with vehicle.
func (s *RosterService) FindSupplier(ctx context.Context, id int) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := s.db.WithContext(ctx).Preload("Vehicle").First(&supplier, id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

// FindPersonnel returns the personnel record with the given id, with vehicle.
func (s *RosterService) FindPersonnel(ctx context.Context, id int) (*model.Personnel, error) {
	var person model.Personnel
	if err := s.db.WithContext(ctx).Preload("Vehicle").First(&person, id).Error; err != nil {
		return nil, err
	}
	return &person, nil
}
