package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"opengate/api/internal/model"
)

const (
	// WebhookSignatureHeader carries the HMAC signature.
	WebhookSignatureHeader = "X-Webhook-Signature"
	// WebhookTimestampHeader carries the signing timestamp.
	WebhookTimestampHeader = "X-Webhook-Timestamp"
	// WebhookEventHeader carries the event type.
	WebhookEventHeader = "X-Webhook-Event"
	// WebhookIDHeader carries the event id.
	WebhookIDHeader = "X-Webhook-ID"

	// MaxWebhookFailCount disables a subscription once exceeded.
	MaxWebhookFailCount = 100
)

// WebhookService delivers gate and incident events to subscriber URLs.
type WebhookService struct {
	db         *gorm.DB
	httpClient *http.Client
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{
		db: db,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Create creates a webhook subscription.
func (s *WebhookService) Create(ctx context.Context, req *model.CreateWebhookRequest, userID int) (*model.Webhook, error) {
	for _, ev := range req.Events {
		if !model.ValidWebhookEvents[ev] {
			return nil, fmt.Errorf("unknown event type %q", ev)
		}
	}

	webhook := &model.Webhook{
		Name:          req.Name,
		Description:   req.Description,
		URL:           req.URL,
		Secret:        req.Secret,
		Events:        pq.StringArray(req.Events),
		Status:        model.WebhookStatusActive,
		RetryCount:    req.RetryCount,
		RetryInterval: req.RetryInterval,
		Timeout:       req.Timeout,
		CreatedBy:     &userID,
	}

	if webhook.RetryCount == 0 {
		webhook.RetryCount = 3
	}
	if webhook.RetryInterval == 0 {
		webhook.RetryInterval = 5
	}
	if webhook.Timeout == 0 {
		webhook.Timeout = 30
	}

	if err := s.db.Create(webhook).Error; err != nil {
		return nil, fmt.Errorf("create webhook failed: %w", err)
	}
	return webhook, nil
}

// Get returns one subscription.
func (s *WebhookService) Get(ctx context.Context, id int) (*model.Webhook, error) {
	var webhook model.Webhook
	if err := s.db.Where("deleted_at IS NULL").First(&webhook, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("webhook not found")
		}
		return nil, err
	}
	return &webhook, nil
}

// List returns all live subscriptions.
func (s *WebhookService) List(ctx context.Context) ([]model.Webhook, error) {
	var webhooks []model.Webhook
	if err := s.db.Where("deleted_at IS NULL").Order("id").Find(&webhooks).Error; err != nil {
		return nil, err
	}
	return webhooks, nil
}

// Update edits a subscription.
func (s *WebhookService) Update(ctx context.Context, id int, req *model.UpdateWebhookRequest) (*model.Webhook, error) {
	webhook, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.URL != "" {
		updates["url"] = req.URL
	}
	if req.Secret != "" {
		updates["secret"] = req.Secret
	}
	if len(req.Events) > 0 {
		for _, ev := range req.Events {
			if !model.ValidWebhookEvents[ev] {
				return nil, fmt.Errorf("unknown event type %q", ev)
			}
		}
		updates["events"] = pq.StringArray(req.Events)
	}
	if req.RetryCount != nil {
		updates["retry_count"] = *req.RetryCount
	}
	if req.RetryInterval != nil {
		updates["retry_interval"] = *req.RetryInterval
	}
	if req.Timeout != nil {
		updates["timeout"] = *req.Timeout
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}

	if err := s.db.Model(webhook).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a subscription.
func (s *WebhookService) Delete(ctx context.Context, id int) error {
	now := time.Now()
	return s.db.Model(&model.Webhook{}).Where("id = ?", id).Update("deleted_at", &now).Error
}

// Deliveries returns recent delivery attempts for a subscription.
func (s *WebhookService) Deliveries(ctx context.Context, webhookID, limit int) ([]model.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	var deliveries []model.WebhookDelivery
	err := s.db.Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// TriggerAsync fans an event out to all matching subscriptions in the
// background. Callers never block on delivery.
func (s *WebhookService) TriggerAsync(eventType string, data interface{}) {
	go func() {
		if err := s.trigger(eventType, data); err != nil {
			log.Printf("[Webhook] trigger %s failed: %v", eventType, err)
		}
	}()
}

func (s *WebhookService) trigger(eventType string, data interface{}) error {
	var webhooks []model.Webhook
	err := s.db.Where("deleted_at IS NULL AND status = ?", model.WebhookStatusActive).Find(&webhooks).Error
	if err != nil {
		return err
	}

	eventID := generateEventID()
	payload := model.WebhookPayload{
		EventID:   eventID,
		EventType: eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for i := range webhooks {
		w := webhooks[i]
		if !subscribed(&w, eventType) {
			continue
		}
		go s.sendWithRetry(&w, eventType, eventID, payloadBytes)
	}
	return nil
}

func subscribed(w *model.Webhook, eventType string) bool {
	for _, ev := range w.Events {
		if ev == eventType || ev == string(model.WebhookEventAll) {
			return true
		}
	}
	return false
}

func (s *WebhookService) sendWithRetry(webhook *model.Webhook, eventType, eventID string, payload []byte) {
	delivery := &model.WebhookDelivery{
		WebhookID: webhook.ID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := s.db.Create(delivery).Error; err != nil {
		log.Printf("[Webhook] failed to create delivery record: %v", err)
	}

	var lastErr error
	var lastStatusCode int
	var lastResponseBody string
	var totalDuration int

	for attempt := 1; attempt <= webhook.RetryCount+1; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(webhook.RetryInterval) * time.Second)
		}

		start := time.Now()
		success, statusCode, responseBody, err := s.send(webhook, eventType, eventID, payload)
		totalDuration += int(time.Since(start).Milliseconds())

		lastStatusCode = statusCode
		lastResponseBody = responseBody

		if success {
			now := time.Now()
			s.db.Model(delivery).Updates(map[string]interface{}{
				"response_status": statusCode,
				"response_body":   responseBody,
				"attempt_count":   attempt,
				"duration_ms":     totalDuration,
				"completed_at":    &now,
			})
			s.db.Model(webhook).Updates(map[string]interface{}{
				"success_count":     gorm.Expr("success_count + 1"),
				"last_triggered_at": time.Now(),
				"last_error":        "",
			})
			return
		}
		lastErr = err
	}

	now := time.Now()
	errorMsg := ""
	if lastErr != nil {
		errorMsg = lastErr.Error()
	}

	s.db.Model(delivery).Updates(map[string]interface{}{
		"response_status": lastStatusCode,
		"response_body":   lastResponseBody,
		"attempt_count":   webhook.RetryCount + 1,
		"duration_ms":     totalDuration,
		"error_message":   errorMsg,
		"completed_at":    &now,
	})

	updates := map[string]interface{}{
		"fail_count":        gorm.Expr("fail_count + 1"),
		"last_triggered_at": time.Now(),
		"last_error":        errorMsg,
	}
	if webhook.FailCount+1 >= MaxWebhookFailCount {
		updates["status"] = model.WebhookStatusFailed
	}
	s.db.Model(webhook).Updates(updates)

	log.Printf("[Webhook] failed to send webhook %d after %d attempts: %v",
		webhook.ID, webhook.RetryCount+1, lastErr)
}

func (s *WebhookService) send(webhook *model.Webhook, eventType, eventID string, payload []byte) (bool, int, string, error) {
	req, err := http.NewRequest(http.MethodPost, webhook.URL, bytes.NewBuffer(payload))
	if err != nil {
		return false, 0, "", fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OpenGate-Webhook/1.0")
	req.Header.Set(WebhookEventHeader, eventType)
	req.Header.Set(WebhookIDHeader, eventID)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(WebhookTimestampHeader, timestamp)
	if webhook.Secret != "" {
		req.Header.Set(WebhookSignatureHeader, s.GenerateSignature(payload, timestamp, webhook.Secret))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, 0, "", fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	return success, resp.StatusCode, string(body), nil
}

// TestWebhook posts a synthetic event at one subscription, once, without
// retries or counters.
func (s *WebhookService) TestWebhook(ctx context.Context, id int) error {
	webhook, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	eventID := generateEventID()
	payload := model.WebhookPayload{
		EventID:   eventID,
		EventType: "test",
		Timestamp: time.Now().UnixMilli(),
		Data: map[string]interface{}{
			"message": "test delivery",
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	success, statusCode, _, err := s.send(webhook, "test", eventID, payloadBytes)
	if err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("endpoint returned status %d", statusCode)
	}
	return nil
}

// GenerateSignature computes hex(hmac-sha256(timestamp + "." + payload)).
func (s *WebhookService) GenerateSignature(payload []byte, timestamp, secret string) string {
	message := timestamp + "." + string(payload)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced by GenerateSignature.
func (s *WebhookService) VerifySignature(payload []byte, timestamp, signature, secret string) bool {
	expected := s.GenerateSignature(payload, timestamp, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func generateEventID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
