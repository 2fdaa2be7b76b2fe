// Login and operation audit trail

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

// AuditHandler serves the audit trail and records entries for the other
// handlers.
type AuditHandler struct {
	db *gorm.DB
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/logins", h.ListLogins)
	r.GET("/audit/operations", h.ListOperations)
	r.GET("/audit/stats", h.GetStats)
}

// ListLogins lists sign-in attempts, newest first.
func (h *AuditHandler) ListLogins(c *gin.Context) {
	query := h.db.Model(&model.LoginLog{}).Order("created_at DESC")

	if username := c.Query("username"); username != "" {
		query = query.Where("username = ?", username)
	}
	if success := c.Query("success"); success != "" {
		query = query.Where("success = ?", success == "true")
	}
	if startTime := c.Query("start_time"); startTime != "" {
		query = query.Where("created_at >= ?", startTime)
	}
	if endTime := c.Query("end_time"); endTime != "" {
		query = query.Where("created_at <= ?", endTime)
	}

	page, pageSize := pagination(c)

	var total int64
	query.Count(&total)

	var logs []model.LoginLog
	query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs)

	c.JSON(http.StatusOK, gin.H{
		"list":      logs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListOperations lists console mutations, newest first.
func (h *AuditHandler) ListOperations(c *gin.Context) {
	query := h.db.Model(&model.OperationLog{}).Order("created_at DESC")

	if username := c.Query("username"); username != "" {
		query = query.Where("username = ?", username)
	}
	if module := c.Query("module"); module != "" {
		query = query.Where("module = ?", module)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if startTime := c.Query("start_time"); startTime != "" {
		query = query.Where("created_at >= ?", startTime)
	}
	if endTime := c.Query("end_time"); endTime != "" {
		query = query.Where("created_at <= ?", endTime)
	}

	page, pageSize := pagination(c)

	var total int64
	query.Count(&total)

	var logs []model.OperationLog
	query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs)

	c.JSON(http.StatusOK, gin.H{
		"list":      logs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetStats returns today's audit counters.
func (h *AuditHandler) GetStats(c *gin.Context) {
	var todayLogins int64
	h.db.Model(&model.LoginLog{}).
		Where("action = ? AND DATE(created_at) = CURRENT_DATE", "login").
		Count(&todayLogins)

	var failedLogins int64
	h.db.Model(&model.LoginLog{}).
		Where("action = ? AND success = ? AND DATE(created_at) = CURRENT_DATE", "login", false).
		Count(&failedLogins)

	var activeUsers int64
	h.db.Model(&model.LoginLog{}).
		Where("action = ? AND DATE(created_at) = CURRENT_DATE", "login").
		Distinct("user_id").
		Count(&activeUsers)

	var todayOperations int64
	h.db.Model(&model.OperationLog{}).
		Where("DATE(created_at) = CURRENT_DATE").
		Count(&todayOperations)

	c.JSON(http.StatusOK, gin.H{
		"today_logins":     todayLogins,
		"failed_logins":    failedLogins,
		"active_users":     activeUsers,
		"today_operations": todayOperations,
	})
}

// RecordLogin writes one sign-in attempt, called from the login handler.
func (h *AuditHandler) RecordLogin(userID int, username, ip, userAgent string, success bool, errorMsg string) {
	log := model.LoginLog{
		UserID:    userID,
		Username:  username,
		Action:    "login",
		IP:        ip,
		UserAgent: userAgent,
		Success:   success,
		ErrorMsg:  errorMsg,
		CreatedAt: time.Now(),
	}
	h.db.Create(&log)
}

// RecordOperation writes one mutation record, called from CRUD handlers.
func (h *AuditHandler) RecordOperation(c *gin.Context, module, action, resourceID string) {
	userID, _ := c.Get("userID")
	username, _ := c.Get("username")

	log := model.OperationLog{
		Module:     module,
		Action:     action,
		ResourceID: resourceID,
		IP:         c.ClientIP(),
		CreatedAt:  time.Now(),
	}
	if id, ok := userID.(int); ok {
		log.UserID = id
	}
	if name, ok := username.(string); ok {
		log.Username = name
	}
	h.db.Create(&log)
}

func pagination(c *gin.Context) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil && ps > 0 && ps <= 200 {
		pageSize = ps
	}
	return page, pageSize
}
