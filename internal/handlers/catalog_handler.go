package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/services"
)

// CatalogReader serves read-only remote projections.
type CatalogReader interface {
	ListRemote(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error)
	GetRemote(ctx context.Context, id int64) (*clients.Product, error)
	FindByHandle(ctx context.Context, handle string) (*clients.Product, error)
	Locations(ctx context.Context) ([]clients.Location, error)
	InventoryLevels(ctx context.Context, inventoryItemID int64) ([]services.InventoryLevelView, error)
	ListOrders(ctx context.Context, opts *clients.ListOptions) (*clients.OrdersResult, error)
	GetOrder(ctx context.Context, id int64) (json.RawMessage, error)
}

// CatalogExporter walks and renders the full remote catalog.
type CatalogExporter interface {
	Collect(ctx context.Context) ([]clients.Product, error)
	WriteXLSX(products []clients.Product, w io.Writer) error
}

// ProductImporter creates products in bulk.
type ProductImporter interface {
	Import(ctx context.Context, items []services.ProductInput) ([]services.ItemOutcome, error)
}

// CatalogHandler handles remote catalog reads, export and bulk import
type CatalogHandler struct {
	reader   CatalogReader
	exporter CatalogExporter
	importer ProductImporter
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(reader CatalogReader, exporter CatalogExporter, importer ProductImporter) *CatalogHandler {
	return &CatalogHandler{reader: reader, exporter: exporter, importer: importer}
}

// ListRemote returns one page of remote products, or the product with ?handle
func (h *CatalogHandler) ListRemote(c *gin.Context) {
	if handle := c.Query("handle"); handle != "" {
		product, err := h.reader.FindByHandle(c.Request.Context(), handle)
		if err != nil {
			handleError(c, err)
			return
		}
		respond(c, http.StatusOK, product)
		return
	}

	page, err := h.reader.ListRemote(c.Request.Context(), &clients.ListOptions{
		Limit:  queryInt(c, "limit", 50),
		Cursor: c.Query("page_info"),
		Status: c.Query("status"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"data":         page.Products,
		"hasMore":      page.HasMore,
		"nextPageInfo": page.NextCursor,
	})
}

// GetRemote returns a remote product
func (h *CatalogHandler) GetRemote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.reader.GetRemote(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

// Locations returns the active locations
func (h *CatalogHandler) Locations(c *gin.Context) {
	locations, err := h.reader.Locations(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, locations)
}

// InventoryLevels returns the levels of one inventory item
func (h *CatalogHandler) InventoryLevels(c *gin.Context) {
	id, ok := parseID(c, "inventory_item_id")
	if !ok {
		return
	}
	levels, err := h.reader.InventoryLevels(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, levels)
}

// ListOrders returns one page of remote orders
func (h *CatalogHandler) ListOrders(c *gin.Context) {
	page, err := h.reader.ListOrders(c.Request.Context(), &clients.ListOptions{
		Limit:  queryInt(c, "limit", 50),
		Cursor: c.Query("page_info"),
		Status: c.Query("status"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"data":         page.Orders,
		"hasMore":      page.HasMore,
		"nextPageInfo": page.NextCursor,
	})
}

// GetOrder returns a remote order as the remote rendered it
func (h *CatalogHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := h.reader.GetOrder(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

// Export returns the full remote catalog as JSON or as an XLSX download
func (h *CatalogHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "xlsx" {
		handleError(c, &services.ValidationError{Fields: map[string]string{"format": "format must be json or xlsx"}})
		return
	}

	products, err := h.exporter.Collect(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, ListResponse{Success: true, Data: products, Total: int64(len(products))})
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.WriteXLSX(products, &buf); err != nil {
		handleError(c, err)
		return
	}
	filename := fmt.Sprintf("catalog_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// Import creates products from a JSON array or an uploaded XLSX workbook
func (h *CatalogHandler) Import(c *gin.Context) {
	var items []services.ProductInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			handleError(c, &services.ValidationError{Fields: map[string]string{"file": "file is required"}})
			return
		}
		defer file.Close()
		items, err = services.ParseXLSX(file)
		if err != nil {
			handleError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&items); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON array of products: "+err.Error(), nil)
		return
	}

	outcomes, err := h.importer.Import(c.Request.Context(), items)
	var partial *services.PartialFailure
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusMultiStatus, Response{Success: false, Data: outcomes})
	case err != nil:
		handleError(c, err)
	default:
		respond(c, http.StatusOK, outcomes)
	}
}
