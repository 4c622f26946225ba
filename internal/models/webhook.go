package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Webhook topics that touch the catalog mirror
const (
	TopicProductsCreate = "products/create"
	TopicProductsUpdate = "products/update"
	TopicProductsDelete = "products/delete"
)

// WebhookEvent is an incoming, signature-verified webhook delivery.
type WebhookEvent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// X-Shopify-Webhook-Id; deliveries are retried with the same id.
	EventID    string `gorm:"type:varchar(255);not null;uniqueIndex" json:"eventId"`
	Topic      string `gorm:"type:varchar(100);not null;index:idx_catalog_webhook_topic" json:"topic"`
	ShopDomain string `gorm:"type:varchar(255)" json:"shopDomain,omitempty"`
	ResourceID int64  `json:"resourceId"`

	Payload JSONB `gorm:"type:jsonb" json:"payload"`

	Processed       bool       `gorm:"default:false;index:idx_catalog_webhook_processed" json:"processed"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`
	RetryCount      int        `gorm:"default:0" json:"retryCount"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for WebhookEvent
func (WebhookEvent) TableName() string {
	return "catalog_webhook_events"
}

// BeforeCreate assigns the row id.
func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
