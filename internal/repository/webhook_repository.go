package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-sync-service/internal/models"
)

// WebhookRepository handles database operations for webhook deliveries
type WebhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Create stores a delivery. Returns false without error when the event id was already recorded.
func (r *WebhookRepository) Create(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	exists, err := r.ExistsWithEventID(ctx, event.EventID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExistsWithEventID checks whether a delivery id was already recorded
func (r *WebhookRepository) ExistsWithEventID(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

// MarkProcessed marks a webhook event as processed
func (r *WebhookRepository) MarkProcessed(ctx context.Context, id uuid.UUID, procErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":    procErr == nil,
		"processed_at": &now,
	}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// GetUnprocessedEvents retrieves failed deliveries that can still be retried
func (r *WebhookRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND retry_count < ?", false, 3).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
