package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-sync-service/internal/models"
)

// SyncRepository handles database operations for catalog sync jobs
type SyncRepository struct {
	db *gorm.DB
}

// NewSyncRepository creates a new sync repository
func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// SyncListOptions contains filtering options for listing sync jobs
type SyncListOptions struct {
	Status models.SyncStatus
	Limit  int
	Offset int
}

// CreateJob creates a new sync job
func (r *SyncRepository) CreateJob(ctx context.Context, job *models.CatalogSyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJobByID retrieves a sync job by ID
func (r *SyncRepository) GetJobByID(ctx context.Context, id uuid.UUID) (*models.CatalogSyncJob, error) {
	var job models.CatalogSyncJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStatus updates the job status, stamping start and completion times
func (r *SyncRepository) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, errorMessage string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
		"updated_at":    now,
	}
	if status == models.SyncStatusRunning {
		updates["started_at"] = &now
	}
	if status.IsTerminal() {
		updates["completed_at"] = &now
	}
	return r.db.WithContext(ctx).
		Model(&models.CatalogSyncJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateJobProgress updates the job progress and resume cursor
func (r *SyncRepository) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress *models.SyncProgress, cursor string) error {
	return r.db.WithContext(ctx).
		Model(&models.CatalogSyncJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":        models.ProgressJSON(progress),
			"cursor_position": cursor,
			"updated_at":      time.Now(),
		}).Error
}

// SetErrorDetails records per-product failures of a job
func (r *SyncRepository) SetErrorDetails(ctx context.Context, id uuid.UUID, details models.JSONB) error {
	return r.db.WithContext(ctx).
		Model(&models.CatalogSyncJob{}).
		Where("id = ?", id).
		Update("error_details", details).Error
}

// ListJobs retrieves sync jobs with pagination and filtering
func (r *SyncRepository) ListJobs(ctx context.Context, opts SyncListOptions) ([]models.CatalogSyncJob, int64, error) {
	var jobs []models.CatalogSyncJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CatalogSyncJob{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// GetActiveJobs retrieves pending or running jobs
func (r *SyncRepository) GetActiveJobs(ctx context.Context) ([]models.CatalogSyncJob, error) {
	var jobs []models.CatalogSyncJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.SyncStatus{
			models.SyncStatusPending,
			models.SyncStatusRunning,
		}).
		Find(&jobs).Error
	return jobs, err
}

// FailOrphanedJobs marks jobs left running by a previous process as failed
func (r *SyncRepository) FailOrphanedJobs(ctx context.Context) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.CatalogSyncJob{}).
		Where("status IN ?", []models.SyncStatus{models.SyncStatusPending, models.SyncStatusRunning}).
		Updates(map[string]interface{}{
			"status":        models.SyncStatusFailed,
			"error_message": "interrupted by service restart",
			"completed_at":  &now,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}
