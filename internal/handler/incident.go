package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opengate/api/internal/model"
	"opengate/api/internal/service"
)

// IncidentHandler serves security incident reports.
type IncidentHandler struct {
	incidents *service.IncidentService
	audit     *AuditHandler
}

// NewIncidentHandler creates an incident handler.
func NewIncidentHandler(incidents *service.IncidentService, audit *AuditHandler) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, audit: audit}
}

// List returns filtered, paginated incidents.
func (h *IncidentHandler) List(c *gin.Context) {
	var q model.IncidentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incidents, total, err := h.incidents.List(c.Request.Context(), &q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":      incidents,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// Get returns one incident.
func (h *IncidentHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	incident, err := h.incidents.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, incident)
}

// Create reports a new incident.
func (h *IncidentHandler) Create(c *gin.Context) {
	var req model.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidents.Create(c.Request.Context(), &req, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "incident", "create", strconv.Itoa(incident.ID))
	c.JSON(http.StatusCreated, incident)
}

// Update edits an open incident.
func (h *IncidentHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.UpdateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidents.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.incidentError(c, err)
		return
	}

	h.audit.RecordOperation(c, "incident", "update", strconv.Itoa(id))
	c.JSON(http.StatusOK, incident)
}

// Resolve closes an incident.
func (h *IncidentHandler) Resolve(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.ResolveIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidents.Resolve(c.Request.Context(), id, req.Resolution, c.GetInt("userID"))
	if err != nil {
		h.incidentError(c, err)
		return
	}

	h.audit.RecordOperation(c, "incident", "resolve", strconv.Itoa(id))
	c.JSON(http.StatusOK, incident)
}

// Stats returns the incident counters for the dashboard.
func (h *IncidentHandler) Stats(c *gin.Context) {
	stats, err := h.incidents.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *IncidentHandler) incidentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
	case errors.Is(err, service.ErrIncidentResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
