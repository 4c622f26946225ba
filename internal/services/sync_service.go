package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

// ErrSyncInProgress is returned when a full sweep is requested while one is running.
var ErrSyncInProgress = errors.New("a catalog sweep is already running")

// ErrJobNotRunning is returned when cancelling a job that is not running.
var ErrJobNotRunning = errors.New("job not found or not running")

const maxErrorDetails = 50

// SyncService runs persisted catalog sync jobs in the background
type SyncService struct {
	syncRepo   *repository.SyncRepository
	products   *repository.ProductRepository
	client     clients.CatalogClient
	reconciler *ReconciliationService
	config     *config.Config
	retrier    *clients.Retrier
	logger     *logrus.Entry

	mu         sync.Mutex
	activeJobs map[uuid.UUID]context.CancelFunc
	sweeping   bool
	wg         sync.WaitGroup
}

// NewSyncService creates a new sync service
func NewSyncService(
	syncRepo *repository.SyncRepository,
	products *repository.ProductRepository,
	client clients.CatalogClient,
	reconciler *ReconciliationService,
	cfg *config.Config,
	logger *logrus.Logger,
) *SyncService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	retryCfg := clients.DefaultRetryConfig()
	if cfg.SyncMaxRetries > 0 {
		retryCfg.MaxRetries = cfg.SyncMaxRetries
	}
	if cfg.SyncRetryDelay > 0 {
		retryCfg.InitialBackoff = cfg.SyncRetryDelay
	}
	return &SyncService{
		syncRepo:   syncRepo,
		products:   products,
		client:     client,
		reconciler: reconciler,
		config:     cfg,
		retrier:    clients.NewRetrier(retryCfg),
		logger:     logger.WithField("component", "catalog-sync"),
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
	}
}

// CreateJobRequest contains the data for creating a new sync job
type CreateJobRequest struct {
	JobType          models.SyncJobType `json:"jobType"`
	ShopifyProductID int64              `json:"shopifyProductId,omitempty"`
	TriggeredBy      models.TriggerType `json:"triggeredBy,omitempty"`
}

// CreateJob persists a job and starts it in the background
func (s *SyncService) CreateJob(ctx context.Context, req *CreateJobRequest) (*models.CatalogSyncJob, error) {
	jobType := req.JobType
	if jobType == "" {
		jobType = models.JobTypeFullReconcile
	}
	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.TriggerManual
	}

	job := &models.CatalogSyncJob{
		JobType:     jobType,
		Status:      models.SyncStatusPending,
		TriggeredBy: triggeredBy,
	}

	switch jobType {
	case models.JobTypeFullReconcile:
		s.mu.Lock()
		if s.sweeping {
			s.mu.Unlock()
			return nil, ErrSyncInProgress
		}
		s.sweeping = true
		s.mu.Unlock()
	case models.JobTypeFetchEntity:
		if req.ShopifyProductID <= 0 {
			return nil, invalid("shopifyProductId", "shopifyProductId is required for FETCH_ENTITY jobs")
		}
		id := req.ShopifyProductID
		job.ShopifyProductID = &id
	default:
		return nil, invalid("jobType", fmt.Sprintf("unsupported job type %q", jobType))
	}

	job.SetProgress(&models.SyncProgress{})
	if err := s.syncRepo.CreateJob(ctx, job); err != nil {
		s.endSweep(job)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobCtx, cancel := context.WithTimeout(context.Background(), s.config.SyncTimeout)
	s.mu.Lock()
	s.activeJobs[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runJob(jobCtx, job)

	return job, nil
}

// GetJob retrieves a sync job by ID
func (s *SyncService) GetJob(ctx context.Context, id uuid.UUID) (*models.CatalogSyncJob, error) {
	job, err := s.syncRepo.GetJobByID(ctx, id)
	return job, notFoundErr(err)
}

// ListJobs lists sync jobs
func (s *SyncService) ListJobs(ctx context.Context, opts repository.SyncListOptions) ([]models.CatalogSyncJob, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	return s.syncRepo.ListJobs(ctx, opts)
}

// CancelJob cancels a running sync job
func (s *SyncService) CancelJob(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	cancel, exists := s.activeJobs[id]
	s.mu.Unlock()

	if !exists {
		return ErrJobNotRunning
	}

	cancel()
	return s.syncRepo.UpdateJobStatus(ctx, id, models.SyncStatusCancelled, "Cancelled by user")
}

// RecoverOrphanedJobs fails jobs left running by a previous process
func (s *SyncService) RecoverOrphanedJobs(ctx context.Context) {
	n, err := s.syncRepo.FailOrphanedJobs(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to recover orphaned sync jobs")
		return
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("Marked orphaned sync jobs as failed")
	}
}

// Shutdown cancels running jobs and waits for them to stop
func (s *SyncService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	for _, cancel := range s.activeJobs {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *SyncService) endSweep(job *models.CatalogSyncJob) {
	if job.JobType != models.JobTypeFullReconcile {
		return
	}
	s.mu.Lock()
	s.sweeping = false
	s.mu.Unlock()
}

func (s *SyncService) runJob(ctx context.Context, job *models.CatalogSyncJob) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.activeJobs[job.ID]; ok {
			cancel()
			delete(s.activeJobs, job.ID)
		}
		s.mu.Unlock()
		s.endSweep(job)
	}()

	log := s.logger.WithFields(logrus.Fields{"jobId": job.ID, "jobType": job.JobType})
	_ = s.syncRepo.UpdateJobStatus(ctx, job.ID, models.SyncStatusRunning, "")
	log.Info("Sync job started")

	var err error
	switch job.JobType {
	case models.JobTypeFetchEntity:
		err = s.fetchEntity(ctx, job)
	default:
		err = s.sweep(ctx, job)
	}

	if err != nil {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				_ = s.syncRepo.UpdateJobStatus(context.Background(), job.ID, models.SyncStatusFailed, "sync timed out")
			}
			// Cancelled jobs were already marked by CancelJob or Shutdown.
			log.WithError(err).Warn("Sync job stopped")
			return
		}
		_ = s.syncRepo.UpdateJobStatus(context.Background(), job.ID, models.SyncStatusFailed, err.Error())
		log.WithError(err).Error("Sync job failed")
		return
	}

	_ = s.syncRepo.UpdateJobStatus(context.Background(), job.ID, models.SyncStatusCompleted, "")
	log.Info("Sync job completed")
}

func (s *SyncService) fetchEntity(ctx context.Context, job *models.CatalogSyncJob) error {
	progress := &models.SyncProgress{TotalItems: 1, ProcessedItems: 1}
	_, err := s.reconciler.SyncProduct(ctx, *job.ShopifyProductID)
	switch {
	case err == nil:
		progress.SuccessfulItems = 1
	case clients.IsNotFound(err):
		progress.RemovedItems = 1
		err = nil
	default:
		progress.FailedItems = 1
	}
	progress.Percentage = 100
	_ = s.syncRepo.UpdateJobProgress(context.Background(), job.ID, progress, "")
	return err
}

// sweep reconciles every remote product, then removes mirror rows whose product no longer exists.
// Pruning only runs after the whole remote catalog was listed.
func (s *SyncService) sweep(ctx context.Context, job *models.CatalogSyncJob) error {
	progress := &models.SyncProgress{}
	failures := models.JSONB{}
	seen := make(map[int64]bool)
	var cursor string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var page *clients.ProductsResult
		res := s.retrier.Do(ctx, "list products", func(ctx context.Context) (int, error) {
			var err error
			page, err = s.client.ListProducts(ctx, &clients.ListOptions{
				Limit:  s.config.SyncBatchSize,
				Cursor: cursor,
				Fields: "id",
			})
			return clients.StatusCode(err), err
		})
		if res.LastError != nil {
			return fmt.Errorf("failed to list remote products: %w", res.LastError)
		}

		progress.TotalItems += len(page.Products)
		for _, p := range page.Products {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			seen[p.ID] = true

			_, err := s.reconciler.SyncProduct(ctx, p.ID)
			switch {
			case err == nil:
				progress.SuccessfulItems++
			case clients.IsNotFound(err):
				progress.RemovedItems++
			default:
				progress.FailedItems++
				if len(failures) < maxErrorDetails {
					failures[strconv.FormatInt(p.ID, 10)] = err.Error()
				}
				s.logger.WithError(err).WithField("productId", p.ID).Warn("Failed to sync product")
			}
			progress.ProcessedItems++
			progress.Percentage = float64(progress.ProcessedItems) / float64(progress.TotalItems) * 100

			if progress.ProcessedItems%10 == 0 {
				_ = s.syncRepo.UpdateJobProgress(ctx, job.ID, progress, cursor)
			}
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	localIDs, err := s.products.ListShopifyIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mirrored products: %w", err)
	}
	for _, id := range localIDs {
		if seen[id] {
			continue
		}
		if _, err := s.reconciler.Remove(ctx, id); err != nil {
			progress.FailedItems++
			if len(failures) < maxErrorDetails {
				failures[strconv.FormatInt(id, 10)] = err.Error()
			}
			continue
		}
		progress.RemovedItems++
	}

	_ = s.syncRepo.UpdateJobProgress(context.Background(), job.ID, progress, "")
	if len(failures) > 0 {
		_ = s.syncRepo.SetErrorDetails(context.Background(), job.ID, failures)
	}
	s.logger.WithFields(logrus.Fields{
		"jobId":      job.ID,
		"total":      progress.TotalItems,
		"successful": progress.SuccessfulItems,
		"failed":     progress.FailedItems,
		"removed":    progress.RemovedItems,
	}).Info("Catalog sweep finished")
	return nil
}

// WaitIdle blocks until no job goroutine is running or the timeout expires.
func (s *SyncService) WaitIdle(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
