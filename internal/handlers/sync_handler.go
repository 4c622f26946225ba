package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// SyncJobs manages catalog sync jobs.
type SyncJobs interface {
	CreateJob(ctx context.Context, req *services.CreateJobRequest) (*models.CatalogSyncJob, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.CatalogSyncJob, error)
	ListJobs(ctx context.Context, opts repository.SyncListOptions) ([]models.CatalogSyncJob, int64, error)
	CancelJob(ctx context.Context, id uuid.UUID) error
}

// SyncHandler handles sync job endpoints
type SyncHandler struct {
	service SyncJobs
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service SyncJobs) *SyncHandler {
	return &SyncHandler{service: service}
}

// ListJobs returns sync jobs, newest first
func (h *SyncHandler) ListJobs(c *gin.Context) {
	opts := repository.SyncListOptions{
		Status: models.SyncStatus(strings.ToUpper(c.Query("status"))),
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}

	jobs, total, err := h.service.ListJobs(c.Request.Context(), opts)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Success: true, Data: jobs, Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

// CreateJob starts a sync job. An empty body starts a full reconcile.
func (h *SyncHandler) CreateJob(c *gin.Context) {
	var req services.CreateJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
			return
		}
	}

	job, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusAccepted, job)
}

// GetJob returns a single sync job
func (h *SyncHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid id", nil)
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, job)
}

// CancelJob cancels a running sync job
func (h *SyncHandler) CancelJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid id", nil)
		return
	}

	if err := h.service.CancelJob(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "status": models.SyncStatusCancelled})
}
