package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"opengate/api/internal/model"
	"opengate/api/internal/service"
)

// WebhookHandler manages outbound notification subscriptions.
type WebhookHandler struct {
	webhooks *service.WebhookService
	audit    *AuditHandler
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(webhooks *service.WebhookService, audit *AuditHandler) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, audit: audit}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/webhooks", h.List)
	r.GET("/webhooks/:id", h.Get)
	r.POST("/webhooks", h.Create)
	r.PUT("/webhooks/:id", h.Update)
	r.DELETE("/webhooks/:id", h.Delete)
	r.GET("/webhooks/:id/deliveries", h.Deliveries)
	r.POST("/webhooks/:id/test", h.Test)
}

// List returns all subscriptions.
func (h *WebhookHandler) List(c *gin.Context) {
	webhooks, err := h.webhooks.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"list":  webhooks,
		"total": len(webhooks),
	})
}

// Get returns one subscription.
func (h *WebhookHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	webhook, err := h.webhooks.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, webhook)
}

// Create creates a subscription.
func (h *WebhookHandler) Create(c *gin.Context) {
	var req model.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webhook, err := h.webhooks.Create(c.Request.Context(), &req, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "webhook", "create", strconv.Itoa(webhook.ID))
	c.JSON(http.StatusCreated, webhook)
}

// Update edits a subscription.
func (h *WebhookHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req model.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webhook, err := h.webhooks.Update(c.Request.Context(), id, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "webhook", "update", strconv.Itoa(id))
	c.JSON(http.StatusOK, webhook)
}

// Delete removes a subscription.
func (h *WebhookHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.webhooks.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.RecordOperation(c, "webhook", "delete", strconv.Itoa(id))
	c.JSON(http.StatusOK, gin.H{"message": "webhook deleted"})
}

// Deliveries lists recent delivery attempts.
func (h *WebhookHandler) Deliveries(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	deliveries, err := h.webhooks.Deliveries(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"list":  deliveries,
		"total": len(deliveries),
	})
}

// Test fires a synthetic event at one subscription.
func (h *WebhookHandler) Test(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.webhooks.TestWebhook(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test delivered"})
}
