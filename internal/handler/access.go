// Gate operations: presence, check-in/out, logs, stats

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"opengate/api/internal/model"
	"opengate/api/internal/service"
)

// AccessHandler serves the gate console: the reconciled presence view,
// check-in/check-out, the log history, and log-derived statistics.
type AccessHandler struct {
	logs   *service.AccessLogService
	export *service.ExportService
	events *service.JetStreamService
	audit  *AuditHandler
}

// NewAccessHandler creates an access handler. events may be nil.
func NewAccessHandler(logs *service.AccessLogService, export *service.ExportService, events *service.JetStreamService, audit *AuditHandler) *AccessHandler {
	return &AccessHandler{logs: logs, export: export, events: events, audit: audit}
}

// Presence returns the reconciled per-person gate state.
// @Summary Reconciled presence view
// @Tags access
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /access/presence [get]
func (h *AccessHandler) Presence(c *gin.Context) {
	rows, err := h.logs.Presence(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":  rows,
		"total": len(rows),
		"as_of": time.Now(),
	})
}

// ListLogs returns filtered, paginated access logs.
func (h *AccessHandler) ListLogs(c *gin.Context) {
	var q model.LogListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs, total, err := h.logs.List(c.Request.Context(), &q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":      logs,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// ExportLogs streams the filtered logs as an xlsx workbook.
func (h *AccessHandler) ExportLogs(c *gin.Context) {
	var q model.LogListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q.Page = 1
	q.PageSize = 10000

	logs, _, err := h.logs.List(c.Request.Context(), &q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	buf, err := h.export.AccessLogsExcel(logs, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "log", "export", "")

	filename := fmt.Sprintf("access-logs-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// CheckIn records an entry.
// @Summary Check a person in
// @Tags access
// @Accept json
// @Produce json
// @Param request body model.CheckInRequest true "check-in"
// @Success 201 {object} model.AccessLog
// @Router /access/check-in [post]
func (h *AccessHandler) CheckIn(c *gin.Context) {
	var req model.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logRow, err := h.logs.CheckIn(c.Request.Context(), &req)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	h.audit.RecordOperation(c, "log", "check_in", strconv.Itoa(logRow.ID))
	c.JSON(http.StatusCreated, logRow)
}

// CheckOut closes the person's active entry.
func (h *AccessHandler) CheckOut(c *gin.Context) {
	var req model.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logRow, err := h.logs.CheckOut(c.Request.Context(), &req)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	h.audit.RecordOperation(c, "log", "check_out", strconv.Itoa(logRow.ID))
	c.JSON(http.StatusOK, logRow)
}

// MonthlyStats returns per-supplier visit counts for one month.
func (h *AccessHandler) MonthlyStats(c *gin.Context) {
	month := c.DefaultQuery("month", time.Now().Format("2006-01"))

	stats, err := h.logs.MonthlyStats(c.Request.Context(), month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"month": month,
		"list":  stats,
	})
}

// DashboardStats returns the dashboard counters.
func (h *AccessHandler) DashboardStats(c *gin.Context) {
	stats, err := h.logs.DashboardStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ReplayEvents reads back persisted gate events in a time range from the
// event stream.
func (h *AccessHandler) ReplayEvents(c *gin.Context) {
	if h.events == nil || !h.events.IsEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not available"})
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start, expected RFC3339"})
		return
	}
	end := time.Now()
	if e := c.Query("end"); e != "" {
		end, err = time.Parse(time.RFC3339, e)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end, expected RFC3339"})
			return
		}
	}

	batchSize := 100
	if b, err := strconv.Atoi(c.DefaultQuery("batch_size", "100")); err == nil && b > 0 && b <= 1000 {
		batchSize = b
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	events, hasMore, err := h.events.ReplayGateEvents(ctx, start, end, batchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":     events,
		"has_more": hasMore,
	})
}

func (h *AccessHandler) transitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyInside),
		errors.Is(err, service.ErrNotInside):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTimeOrder):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownPerson):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
