package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// ScheduleHandler manages planned supplier visits.
type ScheduleHandler struct {
	db    *gorm.DB
	audit *AuditHandler
}

// NewScheduleHandler creates a schedule handler.
func NewScheduleHandler(db *gorm.DB, audit *AuditHandler) *ScheduleHandler {
	return &ScheduleHandler{db: db, audit: audit}
}

// RegisterRoutes registers schedule routes.
func (h *ScheduleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/schedules", h.List)
	r.GET("/schedules/:id", h.Get)
	r.POST("/schedules", h.Create)
	r.PUT("/schedules/:id", h.Update)
	r.DELETE("/schedules/:id", h.Delete)
}

// List returns filtered, paginated visits ordered by date and time.
func (h *ScheduleHandler) List(c *gin.Context) {
	var q model.ScheduleListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := h.db.Model(&model.ScheduledVisit{})
	if q.SupplierID != 0 {
		query = query.Where("supplier_id = ?", q.SupplierID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.StartDate != "" {
		query = query.Where("visit_date >= ?", q.StartDate)
	}
	if q.EndDate != "" {
		query = query.Where("visit_date <= ?", q.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var visits []model.ScheduledVisit
	offset := (q.Page - 1) * q.PageSize
	if err := query.Preload("Supplier").
		Order("visit_date, visit_time").
		Offset(offset).Limit(q.PageSize).
		Find(&visits).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":      visits,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// Get returns one scheduled visit.
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var visit model.ScheduledVisit
	if err := h.db.Preload("Supplier").First(&visit, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, visit)
}

// Create plans a supplier visit. Date and time stay as the picked local
// values.
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req model.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := time.Parse("2006-01-02", req.VisitDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit_date, expected YYYY-MM-DD"})
		return
	}
	if _, err := time.Parse("15:04", req.VisitTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit_time, expected HH:MM"})
		return
	}

	var supplier model.Supplier
	if err := h.db.First(&supplier, req.SupplierID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supplier not found"})
		return
	}

	visit := model.ScheduledVisit{
		SupplierID: req.SupplierID,
		VisitDate:  req.VisitDate,
		VisitTime:  req.VisitTime,
		Reason:     req.Reason,
		Status:     model.VisitStatusPending,
	}
	if userID := c.GetInt("userID"); userID != 0 {
		visit.CreatedBy = &userID
	}

	if err := h.db.Create(&visit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "schedule", "create", strconv.Itoa(visit.ID))
	c.JSON(http.StatusCreated, visit)
}

// Update edits a visit or moves it through its status.
func (h *ScheduleHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var visit model.ScheduledVisit
	if err := h.db.First(&visit, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.VisitDate != "" {
		if _, err := time.Parse("2006-01-02", req.VisitDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit_date, expected YYYY-MM-DD"})
			return
		}
		updates["visit_date"] = req.VisitDate
	}
	if req.VisitTime != "" {
		if _, err := time.Parse("15:04", req.VisitTime); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit_time, expected HH:MM"})
			return
		}
		updates["visit_time"] = req.VisitTime
	}
	if req.Reason != "" {
		updates["reason"] = req.Reason
	}
	if req.Status != "" {
		switch req.Status {
		case model.VisitStatusPending, model.VisitStatusCompleted, model.VisitStatusCancelled:
			updates["status"] = req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	if err := h.db.Model(&visit).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "schedule", "update", strconv.Itoa(id))

	h.db.Preload("Supplier").First(&visit, id)
	c.JSON(http.StatusOK, visit)
}

// Delete removes a scheduled visit.
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.Delete(&model.ScheduledVisit{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}

	h.audit.RecordOperation(c, "schedule", "delete", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "schedule deleted"})
}
