package model

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// WebhookEventType identifies which gate events a webhook subscribes to.
type WebhookEventType string

const (
	WebhookEventCheckIn          WebhookEventType = "gate.check_in"
	WebhookEventCheckOut         WebhookEventType = "gate.check_out"
	WebhookEventIncidentCreated  WebhookEventType = "incident.created"
	WebhookEventIncidentResolved WebhookEventType = "incident.resolved"
	WebhookEventAll              WebhookEventType = "all"
)

// WebhookStatus is the lifecycle state of a webhook subscription.
type WebhookStatus string

const (
	WebhookStatusActive   WebhookStatus = "active"
	WebhookStatusInactive WebhookStatus = "inactive"
	WebhookStatusFailed   WebhookStatus = "failed"
)

// Webhook is an outbound notification subscription.
type Webhook struct {
	ID              int            `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"type:varchar(100);not null"`
	Description     string         `json:"description,omitempty" gorm:"type:text"`
	URL             string         `json:"url" gorm:"column:url;type:varchar(500);not null"`
	Secret          string         `json:"-" gorm:"type:varchar(255)"` // never exposed in JSON
	Events          pq.StringArray `json:"events" gorm:"type:text[];not null;default:'{}'"`
	Status          WebhookStatus  `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	RetryCount      int            `json:"retry_count" gorm:"column:retry_count;not null;default:3"`
	RetryInterval   int            `json:"retry_interval" gorm:"column:retry_interval;not null;default:5"`
	Timeout         int            `json:"timeout" gorm:"not null;default:30"`
	SuccessCount    int            `json:"success_count" gorm:"column:success_count;not null;default:0"`
	FailCount       int            `json:"fail_count" gorm:"column:fail_count;not null;default:0"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty" gorm:"column:last_triggered_at"`
	LastError       string         `json:"last_error,omitempty" gorm:"column:last_error;type:text"`
	CreatedBy       *int           `json:"created_by,omitempty" gorm:"column:created_by"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"not null;default:now()"`
	DeletedAt       *time.Time     `json:"-" gorm:"column:deleted_at"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// WebhookDelivery is one delivery attempt log.
type WebhookDelivery struct {
	ID             int             `json:"id" gorm:"primaryKey"`
	WebhookID      int             `json:"webhook_id" gorm:"column:webhook_id;not null;index"`
	EventType      string          `json:"event_type" gorm:"column:event_type;type:varchar(50);not null"`
	Payload        json.RawMessage `json:"payload" gorm:"type:jsonb;not null"`
	ResponseStatus *int            `json:"response_status,omitempty" gorm:"column:response_status"`
	ResponseBody   string          `json:"response_body,omitempty" gorm:"column:response_body;type:text"`
	AttemptCount   int             `json:"attempt_count" gorm:"column:attempt_count;not null;default:1"`
	DurationMs     *int            `json:"duration_ms,omitempty" gorm:"column:duration_ms"`
	ErrorMessage   string          `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:now()"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}

// WebhookPayload is the request body posted to subscriber URLs.
type WebhookPayload struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CreateWebhookRequest creates a webhook subscription.
type CreateWebhookRequest struct {
	Name          string   `json:"name" binding:"required,max=100"`
	Description   string   `json:"description"`
	URL           string   `json:"url" binding:"required,url,max=500"`
	Secret        string   `json:"secret" binding:"max=255"`
	Events        []string `json:"events" binding:"required"`
	RetryCount    int      `json:"retry_count" binding:"min=0,max=10"`
	RetryInterval int      `json:"retry_interval" binding:"min=0,max=300"`
	Timeout       int      `json:"timeout" binding:"min=0,max=300"`
}

// UpdateWebhookRequest updates a webhook subscription.
type UpdateWebhookRequest struct {
	Name          string   `json:"name" binding:"omitempty,max=100"`
	Description   string   `json:"description"`
	URL           string   `json:"url" binding:"omitempty,url,max=500"`
	Secret        string   `json:"secret" binding:"max=255"`
	Events        []string `json:"events"`
	RetryCount    *int     `json:"retry_count"`
	RetryInterval *int     `json:"retry_interval"`
	Timeout       *int     `json:"timeout"`
	Status        string   `json:"status"`
}

// ValidWebhookEvents lists the accepted event subscriptions.
var ValidWebhookEvents = map[string]bool{
	string(WebhookEventCheckIn):          true,
	string(WebhookEventCheckOut):         true,
	string(WebhookEventIncidentCreated):  true,
	string(WebhookEventIncidentResolved): true,
	string(WebhookEventAll):              true,
}
