package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// ProductWriter creates, updates and deletes remote products.
type ProductWriter interface {
	Create(ctx context.Context, in *services.ProductInput) (*services.WriteResult, error)
	Update(ctx context.Context, productID int64, in *services.ProductInput) (*services.WriteResult, error)
	Delete(ctx context.Context, productID int64) error
}

// MirrorReader reads the local product mirror.
type MirrorReader interface {
	ListMirror(ctx context.Context, opts repository.ProductListOptions) ([]models.LocalProduct, int64, error)
	GetMirror(ctx context.Context, id int64) (*models.LocalProduct, error)
}

// ProductSyncer reconciles one product into the mirror.
type ProductSyncer interface {
	SyncProduct(ctx context.Context, remoteID int64) (*repository.MirrorResult, error)
}

// ProductHandler handles product endpoints
type ProductHandler struct {
	writer        ProductWriter
	mirror        MirrorReader
	syncer        ProductSyncer
	maxUploadSize int64
}

// NewProductHandler creates a new product handler
func NewProductHandler(writer ProductWriter, mirror MirrorReader, syncer ProductSyncer, maxUploadSize int64) *ProductHandler {
	return &ProductHandler{
		writer:        writer,
		mirror:        mirror,
		syncer:        syncer,
		maxUploadSize: maxUploadSize,
	}
}

// Create creates a remote product from JSON or a multipart form with media files
func (h *ProductHandler) Create(c *gin.Context) {
	in, err := h.bindProductInput(c)
	if err != nil {
		handleError(c, err)
		return
	}

	result, err := h.writer.Create(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

// Update updates a remote product by its remote id
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	in, err := h.bindProductInput(c)
	if err != nil {
		handleError(c, err)
		return
	}

	result, err := h.writer.Update(c.Request.Context(), id, in)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Delete deletes a remote product and its mirror
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.writer.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// List returns mirrored products
func (h *ProductHandler) List(c *gin.Context) {
	opts := repository.ProductListOptions{
		Search: c.Query("search"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	products, total, err := h.mirror.ListMirror(c.Request.Context(), opts)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Success: true, Data: products, Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

// Get returns one mirrored product by local or remote id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.mirror.GetMirror(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

// Sync reconciles one product from the remote store
func (h *ProductHandler) Sync(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := h.syncer.SyncProduct(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"product":         result.Product,
		"changed":         result.Changed(),
		"variantsCreated": result.VariantsCreated,
		"variantsUpdated": result.VariantsUpdated,
		"variantsDeleted": result.VariantsDeleted,
	})
}

func (h *ProductHandler) bindProductInput(c *gin.Context) (*services.ProductInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return h.parseMultipart(c)
	}
	var in services.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, &services.ValidationError{Fields: map[string]string{"body": "invalid JSON: " + err.Error()}}
	}
	return &in, nil
}

// parseMultipart reads a product from form fields, or from a JSON "product" field, plus
// files under media[] and variant_media_<i>[].
func (h *ProductHandler) parseMultipart(c *gin.Context) (*services.ProductInput, error) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, &services.ValidationError{Fields: map[string]string{"body": "invalid multipart form: " + err.Error()}}
	}

	in := &services.ProductInput{}
	fields := make(map[string]string)

	if raw := formValue(form, "product"); raw != "" {
		if err := json.Unmarshal([]byte(raw), in); err != nil {
			fields["product"] = "invalid JSON: " + err.Error()
		}
	} else {
		in.Title = formValue(form, "title")
		in.ProductType = formValue(form, "product_type")
		in.SKU = formValue(form, "sku")
		in.Status = clients.ProductStatus(formValue(form, "status"))
		if v, ok := form.Value["description"]; ok && len(v) > 0 {
			d := v[0]
			in.Description = &d
		}
		if v := formValue(form, "tags"); v != "" {
			in.Tags = clients.SplitTags(v)
		}
		if v := formValue(form, "option_names"); v != "" {
			in.OptionNames = strings.Split(v, ",")
		}
		if v := formValue(form, "price"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				in.Price = &p
			} else {
				fields["price"] = "price must be a number"
			}
		}
		if v := formValue(form, "quantity"); v != "" {
			if q, err := strconv.Atoi(v); err == nil {
				in.Quantity = &q
			} else {
				fields["quantity"] = "quantity must be an integer"
			}
		}
		if v := formValue(form, "location_id"); v != "" {
			if l, err := services.ParseLocationID([]byte(v)); err == nil {
				in.LocationID = l
			} else {
				fields["location_id"] = "location_id must be an integer"
			}
		}
		if v := formValue(form, "variants"); v != "" {
			if err := json.Unmarshal([]byte(v), &in.Variants); err != nil {
				fields["variants"] = "variants must be a JSON array"
			}
		}
	}

	in.Media = mediaFiles(form, "media")
	for i := range in.Variants {
		in.Variants[i].Media = mediaFiles(form, fmt.Sprintf("variant_media_%d", i))
	}

	if len(fields) > 0 {
		return nil, &services.ValidationError{Fields: fields}
	}
	return in, nil
}

func formValue(form *multipart.Form, key string) string {
	if v, ok := form.Value[key]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

// mediaFiles collects the files sent under key or key[].
func mediaFiles(form *multipart.Form, key string) []services.MediaFile {
	headers := append(append([]*multipart.FileHeader{}, form.File[key]...), form.File[key+"[]"]...)
	files := make([]services.MediaFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileFromHeader(fh, ""))
	}
	return files
}

func fileFromHeader(fh *multipart.FileHeader, alt string) services.MediaFile {
	return services.MediaFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Alt:         alt,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
