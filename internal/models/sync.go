package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a JSON object column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	return string(b), err
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	return json.Unmarshal(raw, j)
}

// SyncJobType is the kind of catalog sync job
type SyncJobType string

const (
	// JobTypeFullReconcile walks every remote product and prunes orphaned mirror rows.
	JobTypeFullReconcile SyncJobType = "FULL_RECONCILE"
	// JobTypeFetchEntity reconciles a single product.
	JobTypeFetchEntity SyncJobType = "FETCH_ENTITY"
)

// SyncStatus represents the status of a sync job
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "PENDING"
	SyncStatusRunning   SyncStatus = "RUNNING"
	SyncStatusCompleted SyncStatus = "COMPLETED"
	SyncStatusFailed    SyncStatus = "FAILED"
	SyncStatusCancelled SyncStatus = "CANCELLED"
)

// IsTerminal reports whether the job can no longer change state.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed || s == SyncStatusCancelled
}

// TriggerType represents what triggered the sync
type TriggerType string

const (
	TriggerManual  TriggerType = "MANUAL"
	TriggerWebhook TriggerType = "WEBHOOK"
	TriggerStartup TriggerType = "STARTUP"
)

// SyncProgress tracks the progress of a sync job
type SyncProgress struct {
	TotalItems      int     `json:"totalItems"`
	ProcessedItems  int     `json:"processedItems"`
	SuccessfulItems int     `json:"successfulItems"`
	FailedItems     int     `json:"failedItems"`
	RemovedItems    int     `json:"removedItems"`
	Percentage      float64 `json:"percentage"`
}

// CatalogSyncJob is a background reconciliation sweep over the remote catalog.
type CatalogSyncJob struct {
	ID      uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	JobType SyncJobType `gorm:"type:varchar(50);not null;default:'FULL_RECONCILE'" json:"jobType"`
	Status  SyncStatus  `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_catalog_sync_jobs_status" json:"status"`

	// Set for FETCH_ENTITY jobs
	ShopifyProductID *int64 `json:"shopifyProductId,omitempty"`

	Progress       JSONB  `gorm:"type:jsonb" json:"progress"`
	CursorPosition string `gorm:"type:text" json:"cursorPosition,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`
	ErrorDetails JSONB  `gorm:"type:jsonb" json:"errorDetails,omitempty"`

	TriggeredBy TriggerType `gorm:"type:varchar(50)" json:"triggeredBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for CatalogSyncJob
func (CatalogSyncJob) TableName() string {
	return "catalog_sync_jobs"
}

// BeforeCreate assigns the job id.
func (j *CatalogSyncJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Progress == nil {
		j.Progress = JSONB{}
	}
	return nil
}

// GetProgress returns the sync progress as a structured object
func (j *CatalogSyncJob) GetProgress() *SyncProgress {
	progress := &SyncProgress{}
	if j.Progress == nil {
		return progress
	}
	raw, err := json.Marshal(j.Progress)
	if err != nil {
		return progress
	}
	_ = json.Unmarshal(raw, progress)
	return progress
}

// SetProgress stores the progress, computing the percentage.
func (j *CatalogSyncJob) SetProgress(p *SyncProgress) {
	if p.TotalItems > 0 {
		p.Percentage = float64(p.ProcessedItems) / float64(p.TotalItems) * 100
	}
	j.Progress = ProgressJSON(p)
}

// ProgressJSON renders progress for the progress column.
func ProgressJSON(p *SyncProgress) JSONB {
	return JSONB{
		"totalItems":      p.TotalItems,
		"processedItems":  p.ProcessedItems,
		"successfulItems": p.SuccessfulItems,
		"failedItems":     p.FailedItems,
		"removedItems":    p.RemovedItems,
		"percentage":      p.Percentage,
	}
}
