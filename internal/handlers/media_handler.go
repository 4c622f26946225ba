package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/services"
)

// MediaUploader runs the staged upload cycle.
type MediaUploader interface {
	Upload(ctx context.Context, productID, variantID int64, files []services.MediaFile) []services.FileOutcome
	StageAndTransfer(ctx context.Context, file services.MediaFile) (*services.StagedResource, error)
	Attach(ctx context.Context, productID int64, req services.AttachRequest) (*clients.CreatedMedia, error)
	Delete(ctx context.Context, productID int64, mediaIDs []string) ([]string, error)
	SetFirst(ctx context.Context, productID int64, mediaID string) error
}

// MediaReader reads remote media.
type MediaReader interface {
	ProductMedia(ctx context.Context, productID int64) ([]clients.Media, error)
	ProductsMedia(ctx context.Context, first int, after string) (*clients.ProductMediaPage, error)
	CollectionMedia(ctx context.Context, collectionID int64) (*clients.CollectionMedia, error)
}

// MediaHandler handles media endpoints
type MediaHandler struct {
	uploader      MediaUploader
	reader        MediaReader
	maxUploadSize int64
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(uploader MediaUploader, reader MediaReader, maxUploadSize int64) *MediaHandler {
	return &MediaHandler{uploader: uploader, reader: reader, maxUploadSize: maxUploadSize}
}

type deleteMediaRequest struct {
	MediaIDs []string `json:"media_ids" binding:"required,min=1"`
}

type setFirstRequest struct {
	MediaID string `json:"media_id" binding:"required"`
}

// List returns every media item of a product
func (h *MediaHandler) List(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	media, err := h.reader.ProductMedia(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, media)
}

// Upload stages, transfers and attaches the posted files. Each file gets its own outcome;
// the response is 207 when any file failed.
func (h *MediaHandler) Upload(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var variantID int64
	if v := c.Query("variant_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid variant_id", nil)
			return
		}
		variantID = parsed
	}

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart form: "+err.Error(), nil)
		return
	}
	files := mediaFiles(form, "media")
	if len(files) == 0 {
		handleError(c, &services.ValidationError{Fields: map[string]string{"media": "at least one file is required"}})
		return
	}
	alt := formValue(form, "alt")
	for i := range files {
		files[i].Alt = alt
	}

	outcomes := h.uploader.Upload(c.Request.Context(), id, variantID, files)

	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, Response{Success: failed == 0, Data: gin.H{"media": outcomes, "failed": failed}})
}

// Stage runs stage and transfer for one file without attaching it
func (h *MediaHandler) Stage(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		handleError(c, &services.ValidationError{Fields: map[string]string{"file": "file is required"}})
		return
	}

	staged, err := h.uploader.StageAndTransfer(c.Request.Context(), fileFromHeader(fh, ""))
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusCreated, staged)
}

// Attach attaches a previously staged resource to a product
func (h *MediaHandler) Attach(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	created, err := h.uploader.Attach(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusCreated, created)
}

// Delete removes media from a product
func (h *MediaHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req deleteMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	deleted, err := h.uploader.Delete(c.Request.Context(), id, req.MediaIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deletedMediaIds": deleted})
}

// SetFirst moves a media item to the first position
func (h *MediaHandler) SetFirst(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req setFirstRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	if err := h.uploader.SetFirst(c.Request.Context(), id, req.MediaID); err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"mediaId": req.MediaID, "position": 0})
}

// ProductsMedia returns a page of products with their primary media
func (h *MediaHandler) ProductsMedia(c *gin.Context) {
	page, err := h.reader.ProductsMedia(c.Request.Context(), queryInt(c, "first", 50), c.Query("after"))
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

// CollectionMedia returns a collection with its products' primary media
func (h *MediaHandler) CollectionMedia(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	collection, err := h.reader.CollectionMedia(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, collection)
}
